package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomyedwab/ledger/accounts"
	"github.com/tomyedwab/ledger/audit"
)

// AccountStore is the account storage the commands need.
type AccountStore interface {
	Fetch(ctx context.Context) ([]accounts.Account, error)
	Get(ctx context.Context, id int64) (*accounts.Account, error)
	Create(ctx context.Context, n accounts.NewAccount) (*accounts.Account, error)
	Delete(ctx context.Context, id int64) error
}

// History serves past audit events.
type History interface {
	GetEventsByAccountID(ctx context.Context, accountID int64, limit int) ([]audit.AuditEvent, error)
	GetEventsByType(ctx context.Context, eventType audit.EventType, limit int) ([]audit.AuditEvent, error)
	GetRecentEvents(ctx context.Context, limit int) ([]audit.AuditEvent, error)
}

const defaultHistoryLimit = 50

type idArgs struct {
	ID *int64 `json:"id"`
}

func (a idArgs) require() (int64, error) {
	if a.ID == nil {
		return 0, errors.New("missing argument: id")
	}
	return *a.ID, nil
}

func notFound(id int64, err error) error {
	if accounts.IsNotFound(err) {
		return fmt.Errorf("account %d not found", id)
	}
	return err
}

// RegisterAccounts adds the account commands. history may be nil, in which
// case get_account_history and get_recent_activity are not offered.
func RegisterAccounts(r *Registry, store AccountStore, history History) {
	r.Register("get_accounts", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return store.Fetch(ctx)
	})

	r.Register("get_account", func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args idArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		id, err := args.require()
		if err != nil {
			return nil, err
		}
		account, err := store.Get(ctx, id)
		if err != nil {
			return nil, notFound(id, err)
		}
		return account, nil
	})

	r.Register("create_account", func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args accounts.NewAccount
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return store.Create(ctx, args)
	})

	r.Register("delete_account", func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args idArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		id, err := args.require()
		if err != nil {
			return nil, err
		}
		if err := store.Delete(ctx, id); err != nil {
			return nil, notFound(id, err)
		}
		return map[string]interface{}{"id": id, "deleted": true}, nil
	})

	if history == nil {
		return
	}
	r.Register("get_account_history", func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args struct {
			idArgs
			Limit int `json:"limit"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		id, err := args.require()
		if err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = defaultHistoryLimit
		}
		return history.GetEventsByAccountID(ctx, id, args.Limit)
	})

	r.Register("get_recent_activity", func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args struct {
			Type  string `json:"type"`
			Limit int    `json:"limit"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = defaultHistoryLimit
		}
		switch audit.EventType(args.Type) {
		case "":
			return history.GetRecentEvents(ctx, args.Limit)
		case audit.EventAccountCreated, audit.EventAccountDeleted:
			return history.GetEventsByType(ctx, audit.EventType(args.Type), args.Limit)
		default:
			return nil, fmt.Errorf("unknown event type %q", args.Type)
		}
	})
}
