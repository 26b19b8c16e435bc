// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/core/requests"
)

// KeyHeader carries the API key on every backend request.
const KeyHeader = "X-Goog-Api-Key"

const (
	detectionPath    = "data.detections.0.0.language"
	translationsPath = "data.translations"
)

var (
	errBatchSizeMismatch = errors.New("backend returned a different number of translations")
	errNoDetection       = errors.New("response carried no detection")
)

// Google talks to a Cloud Translation v2 shaped API.
//
//	GET {endpoint}/detect?q=...                -> data.detections[0][0].language
//	GET {endpoint}?q=..&q=..&target=..&format=text -> data.translations[i].translatedText
type Google struct {
	client         *requests.Client
	endpoint       string
	callTimeout    time.Duration
	maxConcurrency int
	log            zerolog.Logger
}

// GoogleOptions configures NewGoogle.
type GoogleOptions struct {
	Endpoint string

	// CallTimeout bounds every individual backend call. Zero disables the bound.
	CallTimeout time.Duration

	// MaxConcurrency limits the per-term fallback fan-out.
	MaxConcurrency int
}

// NewGoogle returns a Google backend sending its requests through client.
func NewGoogle(client *requests.Client, opts GoogleOptions) *Google {
	return &Google{
		client:         client,
		endpoint:       strings.TrimSuffix(opts.Endpoint, "/"),
		callTimeout:    opts.CallTimeout,
		maxConcurrency: max(opts.MaxConcurrency, 1),
		log:            audit.Sys("translate"),
	}
}

// Detect implements Detector.
func (g *Google) Detect(ctx context.Context, text string) (LanguageCode, error) {
	if strings.TrimSpace(text) == "" {
		return Unknown, ErrDetectionFailed
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	body, err := g.client.GetJSON(ctx, requests.RequestOptions{
		URL:      g.endpoint + "/detect",
		Query:    url.Values{"q": {text}},
		Validate: validateDetection,
	})
	if err != nil {
		return Unknown, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	return Normalize(gjson.GetBytes(body, detectionPath).String()), nil
}

// TranslateBatch implements Translator.
//
// All non-empty terms are first sent in one request. If that request fails as a
// whole, each term is retried on its own so that one bad term cannot sink the rest.
func (g *Google) TranslateBatch(ctx context.Context, terms []string, target LanguageCode) []Translation {
	out := make([]Translation, len(terms))

	var (
		pending []string
		index   []int
	)

	for i, term := range terms {
		out[i].Source = term

		if strings.TrimSpace(term) == "" {
			continue
		}

		pending = append(pending, term)
		index = append(index, i)
	}

	if len(pending) == 0 {
		return out
	}

	if target == Unknown || Normalize(string(target)) == Unknown {
		for _, i := range index {
			out[i].Err = fmt.Errorf("%w: unknown target language %q", ErrTranslationFailed, target)
		}

		return out
	}

	texts, err := g.translate(ctx, pending, target)
	if err == nil {
		for j, i := range index {
			out[i].Text = texts[j]
		}

		return out
	}

	if ctx.Err() != nil {
		for _, i := range index {
			out[i].Err = fmt.Errorf("%w: %w", ErrTranslationFailed, ctx.Err())
		}

		return out
	}

	g.log.Debug().
		Err(err).
		Int("terms", len(pending)).
		Msg("Batch translation failed, retrying terms individually")

	var group errgroup.Group

	group.SetLimit(g.maxConcurrency)

	for j, i := range index {
		group.Go(func() error {
			texts, err := g.translate(ctx, pending[j:j+1], target)
			if err != nil {
				out[i].Err = fmt.Errorf("%w: %q: %w", ErrTranslationFailed, pending[j], err)

				return nil
			}

			out[i].Text = texts[0]

			return nil
		})
	}

	_ = group.Wait()

	return out
}

func (g *Google) translate(ctx context.Context, terms []string, target LanguageCode) ([]string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	body, err := g.client.GetJSON(ctx, requests.RequestOptions{
		URL: g.endpoint,
		Query: url.Values{
			"q":      terms,
			"target": {string(target)},
			"format": {"text"},
		},
		Validate: func(body []byte) error {
			if n := len(gjson.GetBytes(body, translationsPath).Array()); n != len(terms) {
				return fmt.Errorf("%w: sent %d, got %d", errBatchSizeMismatch, len(terms), n)
			}

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	translations := gjson.GetBytes(body, translationsPath).Array()

	texts := make([]string, len(translations))
	for i, t := range translations {
		texts[i] = html.UnescapeString(t.Get("translatedText").String())
	}

	return texts, nil
}

func validateDetection(body []byte) error {
	if !gjson.GetBytes(body, detectionPath).Exists() {
		return errNoDetection
	}

	return nil
}

func (g *Google) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, g.callTimeout)
}
