//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package embeddings

import "strings"

// Params are the model settings resolved on first use.
type Params struct {
	// Model is the configured model name. Empty means no model.
	Model string

	// Device is the requested inference device. Empty lets the backend choose.
	Device string
}

// ResolveParams normalises configured values: a device of "auto" (any case)
// becomes empty.
func ResolveParams(model, device string) Params {
	device = strings.TrimSpace(device)
	if strings.EqualFold(device, "auto") {
		device = ""
	}
	return Params{
		Model:  strings.TrimSpace(model),
		Device: device,
	}
}

// DeviceLabel renders a device for log output.
func (p Params) DeviceLabel() string {
	if p.Device == "" {
		return "auto"
	}
	return p.Device
}
