//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen generates sample text for exercising embedding models.
package datagen

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Faker provides fake text generation using gofakeit.
type Faker struct {
	faker *gofakeit.Faker
}

// NewFaker creates a new Faker with a random seed.
func NewFaker() *Faker {
	return &Faker{
		faker: gofakeit.New(uint64(time.Now().UnixNano())),
	}
}

// NewFakerWithSeed creates a new Faker with a specific seed for reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
	}
}

// Sentence generates a random sentence.
func (f *Faker) Sentence(wordCount int) string {
	return f.faker.Sentence(wordCount)
}

// Paragraph generates a random paragraph.
func (f *Faker) Paragraph(paragraphCount, sentenceCount, wordCount int, separator string) string {
	return f.faker.Paragraph(paragraphCount, sentenceCount, wordCount, separator)
}

// Question generates a random question.
func (f *Faker) Question() string {
	return f.faker.Question()
}

// ProductDescription generates a random product description.
func (f *Faker) ProductDescription() string {
	return f.faker.ProductDescription()
}

// HackerPhrase generates a random technical phrase.
func (f *Faker) HackerPhrase() string {
	return f.faker.HackerPhrase()
}

// Int generates a random integer between min and max (inclusive).
func (f *Faker) Int(min, max int) int {
	return f.faker.IntRange(min, max)
}

// Choose returns a random element from the given slice.
func Choose[T any](f *Faker, items []T) T {
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[f.Int(0, len(items)-1)]
}

// SampleText returns one line of sample text, drawn from a mix of styles so
// that a batch covers short queries as well as longer passages.
func (f *Faker) SampleText() string {
	switch f.Int(0, 4) {
	case 0:
		return f.Question()
	case 1:
		return f.ProductDescription()
	case 2:
		return f.HackerPhrase()
	case 3:
		return f.Paragraph(1, f.Int(2, 4), f.Int(6, 14), " ")
	default:
		return f.Sentence(f.Int(5, 20))
	}
}

// SampleTexts returns n lines of sample text.
func (f *Faker) SampleTexts(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = f.SampleText()
	}
	return out
}

// Truncate truncates a string to max runes.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
