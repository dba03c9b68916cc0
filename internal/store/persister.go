package store

import (
	"context"
	"fmt"

	audit "grc/pkg/platform/audit"
)

// MemoryPersister keeps nothing durable; audit events go to the given audit
// store (may be nil).
type MemoryPersister struct {
	audit audit.Store
}

func NewMemoryPersister(auditStore audit.Store) *MemoryPersister {
	return &MemoryPersister{audit: auditStore}
}

func (p *MemoryPersister) Load(context.Context) (*State, error) { return nil, nil }

func (p *MemoryPersister) Save(ctx context.Context, _ *State, _ []string, events []audit.Event) error {
	if p.audit == nil {
		return nil
	}
	for _, e := range events {
		if err := p.audit.Append(ctx, e); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
	}
	return nil
}
