package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

const maxUIDLength = 64

// LocalProvider trusts the uid it is given and provisions unknown workers
// as active USERs in the local store.
type LocalProvider struct {
	workers storage.WorkerRepository
	logger  internal.Logger
	now     func() time.Time
}

func NewLocalProvider(workers storage.WorkerRepository, logger internal.Logger) *LocalProvider {
	return &LocalProvider{workers: workers, logger: logger, now: time.Now}
}

func (p *LocalProvider) Resolve(ctx context.Context, uid string) (*internal.Worker, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" || len(uid) > maxUIDLength {
		return nil, fmt.Errorf("%w: invalid user id", internal.ErrValidation)
	}
	w, err := p.workers.GetOrCreateWorker(ctx, &internal.Worker{
		UID:       uid,
		Name:      uid,
		Role:      internal.RoleUser,
		Status:    internal.WorkerActive,
		CreatedAt: p.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		p.logger.Errorf("failed to resolve worker %q: %v", uid, err)
		return nil, err
	}
	return w, nil
}

var _ Provider = (*LocalProvider)(nil)
