package session

import (
	"context"
	"errors"

	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/webdriver"
	"github.com/devicelab-dev/basil/pkg/logger"
)

// Alive reports whether the server behind c still runs session id. Servers
// that list sessions are asked directly; others are probed by reading the
// session's current url.
func Alive(ctx context.Context, c *webdriver.Client, id string) (bool, error) {
	sessions, err := c.Sessions(ctx)
	if err == nil {
		for _, s := range sessions {
			if s.ID == id {
				return true, nil
			}
		}
		// some grids list only their own sessions, fall through to the probe
		logger.Debug("session %s not listed by %s, probing", id, c.ServerURL())
	} else if core.CategoryOf(err) == core.ErrCategoryConnection {
		return false, err
	}

	probe := webdriver.NewClient(c.ServerURL())
	probe.Attach(id)
	if _, err := probe.SessionString(ctx, "url"); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return false, nil
		}
		if core.CategoryOf(err) == core.ErrCategoryConnection {
			return false, err
		}
		logger.Debug("probe of session %s failed: %v", id, err)
		return false, nil
	}
	return true, nil
}

// Reattach points c at the most recent live session recorded for serverURL
// and browser. Dead records are removed. It reports false when no recorded
// session is usable.
func Reattach(ctx context.Context, store *Store, c *webdriver.Client, browser string) (bool, error) {
	records, err := store.List()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.ServerURL != c.ServerURL() || r.Browser != browser {
			continue
		}
		alive, err := Alive(ctx, c, r.ID)
		if err != nil {
			return false, err
		}
		if !alive {
			logger.Info("recorded session %s is gone, forgetting it", r.ID)
			if err := store.Remove(r.ID); err != nil {
				return false, err
			}
			continue
		}
		c.Attach(r.ID)
		logger.Info("reattached to session %s on %s", r.ID, r.ServerURL)
		return true, store.Touch(r.ID)
	}
	return false, nil
}
