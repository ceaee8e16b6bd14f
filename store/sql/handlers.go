package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func identifierConfigHandlers() repository.ModelHandlers[*identifierConfigRecord] {
	return repository.ModelHandlers[*identifierConfigRecord]{
		NewRecord: func() *identifierConfigRecord {
			return &identifierConfigRecord{}
		},
		GetID: func(record *identifierConfigRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return naturalKeyUUID(record.ID)
		},
		SetID: func(record *identifierConfigRecord, id uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *identifierConfigRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func serviceBackendHandlers() repository.ModelHandlers[*serviceBackendRecord] {
	return repository.ModelHandlers[*serviceBackendRecord]{
		NewRecord: func() *serviceBackendRecord {
			return &serviceBackendRecord{}
		},
		GetID: func(record *serviceBackendRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return naturalKeyUUID(record.ID)
		},
		SetID: func(record *serviceBackendRecord, id uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *serviceBackendRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func dataProfileHandlers() repository.ModelHandlers[*dataProfileRecord] {
	return repository.ModelHandlers[*dataProfileRecord]{
		NewRecord: func() *dataProfileRecord {
			return &dataProfileRecord{}
		},
		GetID: func(record *dataProfileRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return naturalKeyUUID(record.ID)
		},
		SetID: func(record *dataProfileRecord, id uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *dataProfileRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func reconcileCursorHandlers() repository.ModelHandlers[*reconcileCursorRecord] {
	return repository.ModelHandlers[*reconcileCursorRecord]{
		NewRecord: func() *reconcileCursorRecord {
			return &reconcileCursorRecord{}
		},
		GetID: func(record *reconcileCursorRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *reconcileCursorRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "config_id"
		},
		GetIdentifierValue: func(record *reconcileCursorRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ConfigID)
		},
	}
}

func reconcileResultHandlers() repository.ModelHandlers[*reconcileResultRecord] {
	return repository.ModelHandlers[*reconcileResultRecord]{
		NewRecord: func() *reconcileResultRecord {
			return &reconcileResultRecord{}
		},
		GetID: func(record *reconcileResultRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *reconcileResultRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *reconcileResultRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// naturalKeyUUID maps a configuration machine name onto a stable UUID so the
// repository never assigns a generated id over it.
func naturalKeyUUID(value string) uuid.UUID {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
}
