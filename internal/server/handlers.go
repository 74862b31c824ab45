//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/internal/openai"
)

type handlers struct {
	embedder Embedder
}

func (h *handlers) embeddings(c *gin.Context) {
	var req openai.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, openai.InvalidRequest("Request body must be a JSON object: "+err.Error(), ""))
		return
	}

	inputs, err := req.Inputs()
	if err != nil {
		writeError(c, err)
		return
	}

	vectors, err := h.embedder.Embed(c.Request.Context(), inputs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, openai.NewEmbeddingsResponse(vectors, h.embedder.ModelName(), req.Format()))
}

func (h *handlers) models(c *gin.Context) {
	c.JSON(http.StatusOK, openai.NewModelList(h.embedder.ModelName()))
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"model":  h.embedder.ModelName(),
		"loaded": h.embedder.Loaded(),
	})
}

// writeError sends err as an OpenAI error body. Internal detail goes to the
// log only.
func writeError(c *gin.Context, err error) {
	status, body := openai.ToBody(err)

	event := logging.Warn()
	if status >= http.StatusInternalServerError {
		event = logging.Error()
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.InternalMessage != "" {
		event = event.Str("internal", apiErr.InternalMessage)
	}
	event.
		Err(err).
		Int("status", status).
		Str("path", c.Request.URL.Path).
		Msg("Request failed")

	c.AbortWithStatusJSON(status, body)
}
