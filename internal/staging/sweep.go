package staging

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
)

const sweepBatch = 500

type SweepResult struct {
	ExpiredSessions int
	OrphanDirs      int
	StaleExports    int
	PurgedRows      int64
}

func (r SweepResult) Total() int {
	return r.ExpiredSessions + r.OrphanDirs + r.StaleExports
}

// Sweep reclaims abandoned uploads: expired sessions are discarded, directories
// under the root without a live session are removed once older than the TTL,
// leftover export archives are deleted, and terminal rows past retention are
// purged.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	dbc := dbctx.Context{Ctx: ctx}

	expired, err := m.repo.ListExpired(dbc, now, sweepBatch)
	if err != nil {
		return res, err
	}
	for _, s := range expired {
		m.Release(dbc, s, types.OutcomeExpired)
		res.ExpiredSessions++
	}

	orphans, err := m.sweepOrphans(dbc, now)
	res.OrphanDirs = orphans
	if err != nil {
		return res, err
	}
	res.StaleExports = m.sweepExports(now)

	purged, err := m.repo.DeleteTerminalBefore(dbc, now.Add(-m.cfg.Retention))
	res.PurgedRows = purged
	if err != nil {
		return res, err
	}

	m.metrics.AddStagingSwept(res.Total())
	if res.Total() > 0 || res.PurgedRows > 0 {
		m.log.Info("Staging sweep finished",
			"expired_sessions", res.ExpiredSessions,
			"orphan_dirs", res.OrphanDirs,
			"stale_exports", res.StaleExports,
			"purged_rows", res.PurgedRows,
		)
	}
	return res, nil
}

func (m *Manager) sweepOrphans(dbc dbctx.Context, now time.Time) (int, error) {
	infos, err := afero.ReadDir(m.fs, m.cfg.Root)
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-m.cfg.TTL)
	candidates := map[uuid.UUID]string{}
	var ids []uuid.UUID
	removed := 0
	for _, info := range infos {
		if !info.IsDir() || info.Name() == exportsDir || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(m.cfg.Root, info.Name())
		id, err := uuid.Parse(info.Name())
		if err != nil {
			if rmErr := m.fs.RemoveAll(p); rmErr == nil {
				removed++
			}
			continue
		}
		candidates[id] = p
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return removed, nil
	}
	sessions, err := m.repo.GetByIDs(dbc, ids)
	if err != nil {
		return removed, err
	}
	stale := now.Add(-m.cfg.Retention)
	for _, s := range sessions {
		switch {
		case !s.Terminal():
			delete(candidates, s.ID)
		case s.InFlight() && !s.UpdatedAt.Before(stale):
			// claimed by a confirm that has not released yet
			delete(candidates, s.ID)
		}
	}
	for id, p := range candidates {
		if err := m.fs.RemoveAll(p); err != nil {
			m.log.Warn("orphan staging removal failed", "staging_token", id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) sweepExports(now time.Time) int {
	infos, err := afero.ReadDir(m.fs, m.ExportsDir())
	if err != nil {
		return 0
	}
	cutoff := now.Add(-m.cfg.TTL)
	removed := 0
	for _, info := range infos {
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := m.fs.RemoveAll(filepath.Join(m.ExportsDir(), info.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// Run sweeps every SweepInterval until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	m.log.Info("Staging sweeper started", "interval", m.cfg.SweepInterval.String(), "ttl", m.cfg.TTL.String())
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Staging sweeper stopped")
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx, m.now()); err != nil {
				m.log.Warn("Staging sweep failed", "error", err)
			}
		}
	}
}
