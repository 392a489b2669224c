package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the stored row a payload was read from.
type Context struct {
	Table string
	ID    int64
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated record after decoding.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts stored JSON payloads into records.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithIDField injects the row identity into payload[field] before decoding so
// the indexed column stays the source of truth.
func WithIDField[T any](field string) DecoderOption[T] {
	return WithPreHook[T](func(ctx Context, payload map[string]any) (map[string]any, error) {
		if ctx.ID == 0 {
			return payload, nil
		}
		payload[field] = ctx.ID
		return payload, nil
	})
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeBytes parses a stored JSON document and decodes it into T.
func (d *Decoder[T]) DecodeBytes(ctx Context, data []byte) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, fmt.Errorf("hydrate: empty payload for %s/%d", ctx.Table, ctx.ID)
	}
	payload, err := parsePayload(data)
	if err != nil {
		return zero, fmt.Errorf("hydrate: parse payload for %s/%d: %w", ctx.Table, ctx.ID, err)
	}
	return d.Decode(ctx, payload)
}

// Decode converts payload into T applying configured hooks. payload is copied
// before any hook runs.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %s/%d", ctx.Table, ctx.ID)
	}

	current, err := clonePayload(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone payload for %s/%d: %w", ctx.Table, ctx.ID, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s/%d failed: %w", ctx.Table, ctx.ID, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal payload for %s/%d: %w", ctx.Table, ctx.ID, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s/%d: %w", ctx.Table, ctx.ID, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s/%d failed: %w", ctx.Table, ctx.ID, err)
		}
	}

	return result, nil
}

func parsePayload(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	return out, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return parsePayload(buffer)
}
