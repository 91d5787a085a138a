package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// execDriver is a database/sql driver that records Exec calls and answers
// them with a canned result.
type execDriver struct {
	mu      sync.Mutex
	query   string
	args    []driver.NamedValue
	rows    int64
	rowsErr error
	execErr error
}

func (d *execDriver) Open(string) (driver.Conn, error) { return &execConn{d: d}, nil }

type execConn struct{ d *execDriver }

func (c *execConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *execConn) Close() error                        { return nil }
func (c *execConn) Begin() (driver.Tx, error)           { return nil, errors.New("tx not supported") }

func (c *execConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.query = query
	c.d.args = args
	if c.d.execErr != nil {
		return nil, c.d.execErr
	}
	return execResult{rows: c.d.rows, err: c.d.rowsErr}, nil
}

type execResult struct {
	rows int64
	err  error
}

func (r execResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (r execResult) RowsAffected() (int64, error) { return r.rows, r.err }

// execConnector hands out connections to one execDriver.
type execConnector struct{ d *execDriver }

func (c execConnector) Connect(context.Context) (driver.Conn, error) { return c.d.Open("") }
func (c execConnector) Driver() driver.Driver                        { return c.d }

func newExecStore(t *testing.T, d *execDriver) *Store {
	t.Helper()
	db := sql.OpenDB(execConnector{d: d})
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, DefaultRedHold)
}

func TestSaveTriage_Outcomes(t *testing.T) {
	rowsErr := errors.New("driver lost the command tag")
	execErr := errors.New("connection reset")

	tests := []struct {
		name      string
		drv       *execDriver
		wantErr   error
		wantStale bool
	}{
		{"row written", &execDriver{rows: 1}, nil, false},
		{"merge rejected", &execDriver{rows: 0}, ErrStaleDecision, true},
		{"rows affected error", &execDriver{rowsErr: rowsErr}, rowsErr, false},
		{"exec error", &execDriver{execErr: execErr}, execErr, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newExecStore(t, tt.drv)

			err := s.SaveTriage(context.Background(), "u1", decision(engine.ChannelGreen, engine.ReasonScaleLowRisk), t0)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := errors.Is(err, ErrStaleDecision); got != tt.wantStale {
				t.Errorf("stale = %v, want %v (err %v)", got, tt.wantStale, err)
			}
		})
	}
}

func TestSaveTriage_SendsMergeArguments(t *testing.T) {
	d := &execDriver{rows: 1}
	s := newExecStore(t, d)
	level := engine.RiskHigh
	dec := decision(engine.ChannelRed, engine.ReasonDialogueHighRisk)
	dec.DialogueRiskLevel = &level

	at := t0.In(time.FixedZone("UTC+9", 9*3600))
	if err := s.SaveTriage(context.Background(), "u1", dec, at); err != nil {
		t.Fatalf("SaveTriage: %v", err)
	}

	if !strings.Contains(d.query, triageMergeWhere) {
		t.Error("upsert must carry the merge guard")
	}
	if len(d.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(d.args))
	}
	if got := d.args[1].Value; got != "red" {
		t.Errorf("channel arg = %v, want red", got)
	}
	if got := d.args[5].Value; got != "high" {
		t.Errorf("dialogue arg = %v, want high", got)
	}
	if got, ok := d.args[6].Value.(time.Time); !ok || !got.Equal(t0) || got.Location() != time.UTC {
		t.Errorf("evaluated_at arg = %v, want %v in UTC", d.args[6].Value, t0)
	}
	if got := d.args[7].Value; got != DefaultRedHold.Seconds() {
		t.Errorf("red hold arg = %v, want %v", got, DefaultRedHold.Seconds())
	}
}

// The merge guard is written by hand in SQL. These checks pin each clause to
// the branch of acceptDecision it mirrors.
func TestTriageMergeWhere_MatchesAcceptDecision(t *testing.T) {
	red := &StoredDecision{TriageDecision: decision(engine.ChannelRed, engine.ReasonCSSRSPositive), EvaluatedAt: t0}
	green := &StoredDecision{TriageDecision: decision(engine.ChannelGreen, engine.ReasonScaleLowRisk), EvaluatedAt: t0}

	tests := []struct {
		name     string
		clauses  []string
		current  *StoredDecision
		incoming StoredDecision
	}{
		{
			"older evaluation rejected",
			[]string{"EXCLUDED.evaluated_at >= triage_decisions.evaluated_at"},
			green,
			StoredDecision{TriageDecision: decision(engine.ChannelRed, "x"), EvaluatedAt: t0.Add(-time.Second)},
		},
		{
			"red downgrade inside hold rejected",
			[]string{
				"triage_decisions.channel = 'red'",
				"EXCLUDED.channel <> 'red'",
				"EXCLUDED.evaluated_at < triage_decisions.evaluated_at + make_interval(secs => $8)",
			},
			red,
			StoredDecision{TriageDecision: decision(engine.ChannelGreen, "x"), EvaluatedAt: t0.Add(time.Minute)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, clause := range tt.clauses {
				if !strings.Contains(triageMergeWhere, clause) {
					t.Errorf("merge guard lost clause %q", clause)
				}
			}
			if acceptDecision(tt.current, tt.incoming, DefaultRedHold) {
				t.Error("acceptDecision must reject the same write")
			}
		})
	}
}
