package activity

import (
	"strconv"
	"strings"
	"time"
)

// Verbs emitted for record lifecycle events.
const (
	VerbCreate  = "create"
	VerbUpdate  = "update"
	VerbDelete  = "delete"
	VerbRestore = "restore"
)

// RecordEventInput describes the common fields of record lifecycle events.
type RecordEventInput struct {
	ActorID    string
	TenantID   string
	Business   string
	ObjectType string
	ObjectID   int64
	Slug       string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildRecordEvent constructs an event with verb for the record described by
// input. ObjectType defaults to the business name. Stores only assign
// positive ids, so an ObjectID <= 0 marks an unsaved record and leaves the
// event without an object id.
func BuildRecordEvent(verb string, input RecordEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Business != "" {
		metadata = ensureMetadata(metadata)
		metadata["business"] = input.Business
	}
	if input.Slug != "" {
		metadata = ensureMetadata(metadata)
		metadata["slug"] = input.Slug
	}

	objectType := strings.TrimSpace(input.ObjectType)
	if objectType == "" {
		objectType = strings.TrimSpace(input.Business)
	}
	objectID := ""
	if input.ObjectID > 0 {
		objectID = strconv.FormatInt(input.ObjectID, 10)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
