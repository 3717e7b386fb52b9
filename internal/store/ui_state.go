package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"planboard/internal/model"
)

// GetUIState returns the stored UI state of a vault, or nil when none was saved.
//
// UI state is best effort: a corrupted row reads as missing.
func (s Store) GetUIState(ctx context.Context, vaultID string) (json.RawMessage, error) {
	vaultID = strings.TrimSpace(vaultID)
	if vaultID == "" {
		return nil, errors.New("ui state: vault id is required")
	}
	var out json.RawMessage
	err := s.withTx(ctx, "get_ui_state", "", func(tx *sql.Tx) error {
		st, ok, err := loadUIState(ctx, tx, vaultID)
		if err != nil || !ok {
			return err
		}
		out, err = st.JSON()
		return err
	})
	return out, err
}

// SetUIState merges partial (a JSON object) into the stored state; nested objects merge key
// by key.
func (s Store) SetUIState(ctx context.Context, vaultID string, partial json.RawMessage) error {
	vaultID = strings.TrimSpace(vaultID)
	if vaultID == "" {
		return errors.New("ui state: vault id is required")
	}
	patch, err := model.ParseUIState(partial)
	if err != nil {
		return err
	}
	return s.withTx(ctx, "set_ui_state", "", func(tx *sql.Tx) error {
		st, _, err := loadUIState(ctx, tx, vaultID)
		if err != nil {
			return err
		}
		st = st.Merge(patch)
		raw, err := st.JSON()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO ui_state(vault_id, json, updated_at_unixms) VALUES(?, ?, ?)
			ON CONFLICT(vault_id) DO UPDATE SET json = excluded.json, updated_at_unixms = excluded.updated_at_unixms`,
			vaultID, string(raw), unixMs(s.now()))
		return err
	})
}

func loadUIState(ctx context.Context, q dbtx, vaultID string) (model.UIState, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT json FROM ui_state WHERE vault_id = ?`, vaultID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UIState{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ui state: %w", err)
	}
	st, err := model.ParseUIState([]byte(raw))
	if err != nil {
		return model.UIState{}, false, nil
	}
	return st, true, nil
}
