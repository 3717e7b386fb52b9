package planning

import (
	"context"
	"time"

	"planboard/internal/model"
)

// LoadUIState fetches the vault's UI state. Local changes not yet written stay on top.
func (s *Store) LoadUIState(ctx context.Context) error {
	raw, err := s.svc.GetUIState(ctx, s.vaultID)
	if err != nil {
		e := newError("load_ui_state", "", err)
		s.mu.Lock()
		s.notice = noticeFrom(e)
		s.mu.Unlock()
		s.notify()
		return e
	}
	st, err := model.ParseUIState(raw)
	if err != nil {
		return s.reject("load_ui_state", "", err)
	}
	s.mu.Lock()
	s.ui = st.Merge(s.uiPending.Clone())
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetUIState merges partial locally and schedules one remote write for all partials set
// within the debounce window.
func (s *Store) SetUIState(partial model.UIState) {
	if len(partial) == 0 {
		return
	}
	s.mu.Lock()
	s.ui = s.ui.Merge(partial.Clone())
	s.uiPending = s.uiPending.Merge(partial.Clone())
	s.mu.Unlock()
	s.notify()
	s.uiDebounce.Trigger()
}

// FlushUIState writes pending UI state now.
func (s *Store) FlushUIState(ctx context.Context) error {
	s.uiDebounce.Cancel()
	return s.flushUI(ctx)
}

func (s *Store) flushUI(ctx context.Context) error {
	s.mu.Lock()
	pending := s.uiPending
	s.uiPending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	started := time.Now()
	raw, err := pending.JSON()
	if err == nil {
		err = s.svc.SetUIState(ctx, s.vaultID, raw)
	}
	if err != nil {
		// Keep the keys for the next write; newer partials win.
		s.mu.Lock()
		s.uiPending = pending.Merge(s.uiPending)
		s.mu.Unlock()
		s.log.Warn("ui state write failed", "op", "set_ui_state", "vault_id", s.vaultID, "error", err)
		return newError("set_ui_state", "", err)
	}
	s.log.Debug("ui state written", "op", "set_ui_state", "vault_id", s.vaultID, "keys", len(pending), "elapsed_ms", time.Since(started).Milliseconds())
	return nil
}
