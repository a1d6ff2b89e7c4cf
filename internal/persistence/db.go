// Package persistence provides SQLite-backed storage for world state:
// villagers, resource nodes, buildings, and trade offers.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/trade"
	"github.com/talgya/villagers/internal/world"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		level INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		personality_json TEXT NOT NULL,
		inventory_json TEXT NOT NULL,
		goals_json TEXT NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		amount REAL NOT NULL,
		max_amount REAL NOT NULL,
		regen_rate REAL NOT NULL,
		last_regen TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		owner_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		health REAL NOT NULL,
		progress REAL NOT NULL,
		built_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_offers (
		id TEXT PRIMARY KEY,
		from_agent_id TEXT NOT NULL,
		to_agent_id TEXT NOT NULL,
		offering_json TEXT NOT NULL,
		requesting_json TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_kind ON resources(kind);
	CREATE INDEX IF NOT EXISTS idx_buildings_owner ON buildings(owner_id);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trade_offers(status);
	CREATE INDEX IF NOT EXISTS idx_trades_from ON trade_offers(from_agent_id);
	CREATE INDEX IF NOT EXISTS idx_trades_to ON trade_offers(to_agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID              string `db:"id"`
	Name            string `db:"name"`
	PosX            int    `db:"pos_x"`
	PosY            int    `db:"pos_y"`
	Level           int    `db:"level"`
	Experience      int    `db:"experience"`
	PersonalityJSON string `db:"personality_json"`
	InventoryJSON   string `db:"inventory_json"`
	GoalsJSON       string `db:"goals_json"`
	StatsJSON       string `db:"stats_json"`
}

func (r agentRow) toAgent() (*agents.Agent, error) {
	a := &agents.Agent{
		ID:         r.ID,
		Name:       r.Name,
		Pos:        world.Position{X: r.PosX, Y: r.PosY},
		Level:      r.Level,
		Experience: r.Experience,
	}
	if err := json.Unmarshal([]byte(r.PersonalityJSON), &a.Personality); err != nil {
		return nil, fmt.Errorf("agent %s personality: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.InventoryJSON), &a.Inventory); err != nil {
		return nil, fmt.Errorf("agent %s inventory: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.GoalsJSON), &a.Goals); err != nil {
		return nil, fmt.Errorf("agent %s goals: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.StatsJSON), &a.Stats); err != nil {
		return nil, fmt.Errorf("agent %s stats: %w", r.ID, err)
	}
	return a, nil
}

// SaveAgent upserts one villager.
func (db *DB) SaveAgent(a *agents.Agent) error {
	return execSaveAgent(db.conn, a)
}

func execSaveAgent(x sqlx.Execer, a *agents.Agent) error {
	personalityJSON, _ := json.Marshal(a.Personality)
	inventoryJSON, _ := json.Marshal(a.Inventory)
	goalsJSON, _ := json.Marshal(a.Goals)
	statsJSON, _ := json.Marshal(a.Stats)

	_, err := x.Exec(`INSERT OR REPLACE INTO agents
		(id, name, pos_x, pos_y, level, experience,
		 personality_json, inventory_json, goals_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Pos.X, a.Pos.Y, a.Level, a.Experience,
		string(personalityJSON), string(inventoryJSON), string(goalsJSON), string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

// Agent loads one villager by id.
func (db *DB) Agent(id string) (*agents.Agent, error) {
	var row agentRow
	err := db.conn.Get(&row, "SELECT * FROM agents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toAgent()
}

// Agents loads every villager, ordered by name for stable iteration.
func (db *DB) Agents() ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY name"); err != nil {
		return nil, err
	}
	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAgent()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type nodeRow struct {
	ID        string  `db:"id"`
	Kind      string  `db:"kind"`
	PosX      int     `db:"pos_x"`
	PosY      int     `db:"pos_y"`
	Amount    float64 `db:"amount"`
	MaxAmount float64 `db:"max_amount"`
	RegenRate float64 `db:"regen_rate"`
	LastRegen string  `db:"last_regen"`
}

func (r nodeRow) toNode() (*world.ResourceNode, error) {
	lastRegen, err := time.Parse(time.RFC3339Nano, r.LastRegen)
	if err != nil {
		return nil, fmt.Errorf("node %s last_regen: %w", r.ID, err)
	}
	return &world.ResourceNode{
		ID:        r.ID,
		Kind:      economy.Kind(r.Kind),
		Pos:       world.Position{X: r.PosX, Y: r.PosY},
		Amount:    r.Amount,
		MaxAmount: r.MaxAmount,
		RegenRate: r.RegenRate,
		LastRegen: lastRegen,
	}, nil
}

// SaveNode upserts one resource node.
func (db *DB) SaveNode(n *world.ResourceNode) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO resources
		(id, kind, pos_x, pos_y, amount, max_amount, regen_rate, last_regen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.Pos.X, n.Pos.Y,
		n.Amount, n.MaxAmount, n.RegenRate, n.LastRegen.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save node %s: %w", n.ID, err)
	}
	return nil
}

// Node loads one resource node by id.
func (db *DB) Node(id string) (*world.ResourceNode, error) {
	var row nodeRow
	err := db.conn.Get(&row, "SELECT * FROM resources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toNode()
}

// Nodes loads every resource node.
func (db *DB) Nodes() ([]*world.ResourceNode, error) {
	var rows []nodeRow
	if err := db.conn.Select(&rows, "SELECT * FROM resources ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]*world.ResourceNode, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

type buildingRow struct {
	ID       string  `db:"id"`
	Kind     string  `db:"kind"`
	PosX     int     `db:"pos_x"`
	PosY     int     `db:"pos_y"`
	OwnerID  string  `db:"owner_id"`
	Level    int     `db:"level"`
	Health   float64 `db:"health"`
	Progress float64 `db:"progress"`
	BuiltAt  string  `db:"built_at"`
}

func (r buildingRow) toBuilding() (*construction.Building, error) {
	builtAt, err := time.Parse(time.RFC3339Nano, r.BuiltAt)
	if err != nil {
		return nil, fmt.Errorf("building %s built_at: %w", r.ID, err)
	}
	return &construction.Building{
		ID:       r.ID,
		Kind:     r.Kind,
		Pos:      world.Position{X: r.PosX, Y: r.PosY},
		OwnerID:  r.OwnerID,
		Level:    r.Level,
		Health:   r.Health,
		Progress: r.Progress,
		BuiltAt:  builtAt,
	}, nil
}

// SaveBuilding upserts one building.
func (db *DB) SaveBuilding(b *construction.Building) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO buildings
		(id, kind, pos_x, pos_y, owner_id, level, health, progress, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Kind, b.Pos.X, b.Pos.Y, b.OwnerID,
		b.Level, b.Health, b.Progress, b.BuiltAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save building %s: %w", b.ID, err)
	}
	return nil
}

// Buildings loads every building.
func (db *DB) Buildings() ([]*construction.Building, error) {
	return db.selectBuildings("SELECT * FROM buildings ORDER BY id")
}

// BuildingsByOwner loads the buildings owned by one villager.
func (db *DB) BuildingsByOwner(ownerID string) ([]*construction.Building, error) {
	return db.selectBuildings("SELECT * FROM buildings WHERE owner_id = ? ORDER BY id", ownerID)
}

func (db *DB) selectBuildings(query string, args ...any) ([]*construction.Building, error) {
	var rows []buildingRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*construction.Building, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBuilding()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type tradeRow struct {
	ID             string `db:"id"`
	FromAgentID    string `db:"from_agent_id"`
	ToAgentID      string `db:"to_agent_id"`
	OfferingJSON   string `db:"offering_json"`
	RequestingJSON string `db:"requesting_json"`
	Status         string `db:"status"`
	Message        string `db:"message"`
	CreatedAt      string `db:"created_at"`
	ExpiresAt      string `db:"expires_at"`
}

func (r tradeRow) toOffer() (*trade.Offer, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("offer %s created_at: %w", r.ID, err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, r.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("offer %s expires_at: %w", r.ID, err)
	}
	o := &trade.Offer{
		ID:          r.ID,
		FromAgentID: r.FromAgentID,
		ToAgentID:   r.ToAgentID,
		Status:      trade.Status(r.Status),
		Message:     r.Message,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}
	if err := json.Unmarshal([]byte(r.OfferingJSON), &o.Offering); err != nil {
		return nil, fmt.Errorf("offer %s offering: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.RequestingJSON), &o.Requesting); err != nil {
		return nil, fmt.Errorf("offer %s requesting: %w", r.ID, err)
	}
	return o, nil
}

// SaveTrade upserts one trade offer.
func (db *DB) SaveTrade(o *trade.Offer) error {
	return execSaveTrade(db.conn, o)
}

func execSaveTrade(x sqlx.Execer, o *trade.Offer) error {
	offeringJSON, _ := json.Marshal(o.Offering)
	requestingJSON, _ := json.Marshal(o.Requesting)

	_, err := x.Exec(`INSERT OR REPLACE INTO trade_offers
		(id, from_agent_id, to_agent_id, offering_json, requesting_json,
		 status, message, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.FromAgentID, o.ToAgentID,
		string(offeringJSON), string(requestingJSON),
		string(o.Status), o.Message,
		o.CreatedAt.Format(time.RFC3339Nano), o.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save offer %s: %w", o.ID, err)
	}
	return nil
}

// SettleTrade writes both settled inventories and the resolved offer in one
// transaction, so a crash can never leave a debited villager next to a
// still-pending offer.
func (db *DB) SettleTrade(from, to *agents.Agent, o *trade.Offer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	if err := execSaveAgent(tx, from); err != nil {
		return err
	}
	if err := execSaveAgent(tx, to); err != nil {
		return err
	}
	if err := execSaveTrade(tx, o); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// Trade loads one offer by id.
func (db *DB) Trade(id string) (*trade.Offer, error) {
	var row tradeRow
	err := db.conn.Get(&row, "SELECT * FROM trade_offers WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toOffer()
}

// PendingTrades loads offers still awaiting a response, oldest first.
func (db *DB) PendingTrades() ([]*trade.Offer, error) {
	return db.selectTrades(
		"SELECT * FROM trade_offers WHERE status = ? ORDER BY created_at",
		string(trade.Pending),
	)
}

// TradesFor loads every offer involving the agent, newest first.
func (db *DB) TradesFor(agentID string) ([]*trade.Offer, error) {
	return db.selectTrades(
		`SELECT * FROM trade_offers
		 WHERE from_agent_id = ? OR to_agent_id = ?
		 ORDER BY created_at DESC`,
		agentID, agentID,
	)
}

func (db *DB) selectTrades(query string, args ...any) ([]*trade.Offer, error) {
	var rows []tradeRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*trade.Offer, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOffer()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// CountAgents reports the number of stored villagers, for seed checks.
func (db *DB) CountAgents() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM agents")
	return n, err
}
