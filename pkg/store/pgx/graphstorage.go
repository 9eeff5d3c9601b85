package pgx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

const defaultBatchSize = 500

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Writes are
// serialized so two crawls saving the same graph cannot interleave.
type GraphDBStorage struct {
	conn      pgxIConn
	batchSize int
	dbLock    sync.Mutex
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithBatchSize sets how many rows are sent per batch when saving a graph.
func WithBatchSize(size int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection or pool. The schema must already be migrated, see Migrate.
func NewGraphDBStorageWithConnection(
	ctx context.Context,
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) (*GraphDBStorage, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	s := &GraphDBStorage{
		conn:      conn,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

// SaveGraph replaces the stored graph with the same id inside one
// transaction.
func (s *GraphDBStorage) SaveGraph(ctx context.Context, graph store.StoredGraph) error {
	g := graph.Graph
	if g == nil || g.ID == "" {
		return fmt.Errorf("graph id is empty")
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, upsertGraphSQL, g.ID, store.DedupeStrings(graph.Seeds), nullableJSON(graph.Summary)); err != nil {
		return fmt.Errorf("failed to upsert graph %s: %w", g.ID, err)
	}
	for _, q := range []string{deleteAliasesSQL, deleteEdgesSQL, deleteEntitiesSQL} {
		if _, err := tx.Exec(ctx, q, g.ID); err != nil {
			return fmt.Errorf("failed to clear graph %s: %w", g.ID, err)
		}
	}

	err = store.ChunkRange(len(g.Entities), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range g.Entities[start:end] {
			attrs := make(map[string]string, len(e.Attributes))
			for k, v := range e.Attributes {
				attrs[k] = util.SanitizePostgresText(v)
			}
			batch.Queue(insertEntitySQL, g.ID, e.ID, util.SanitizePostgresText(e.Name), string(e.Type), e.Confidence, attrs)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return fmt.Errorf("failed to save entities of %s: %w", g.ID, err)
	}

	err = store.ChunkRange(len(g.Edges), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range g.Edges[start:end] {
			evidence := make([]string, 0, len(e.Evidence))
			for _, ev := range e.Evidence {
				evidence = append(evidence, util.SanitizePostgresText(ev))
			}
			batch.Queue(insertEdgeSQL, g.ID, e.Source, e.Target, string(e.Kind), nonNil(e.Labels), evidence)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return fmt.Errorf("failed to save edges of %s: %w", g.ID, err)
	}

	identities := make([]string, 0, len(graph.Aliases))
	for identity := range graph.Aliases {
		identities = append(identities, identity)
	}
	err = store.ChunkRange(len(identities), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, identity := range identities[start:end] {
			batch.Queue(insertAliasSQL, g.ID, identity, graph.Aliases[identity])
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return fmt.Errorf("failed to save aliases of %s: %w", g.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph %s: %w", g.ID, err)
	}
	logger.Info("[Store] Graph saved", "graph", g.ID, "entities", len(g.Entities), "edges", len(g.Edges), "aliases", len(identities))
	return nil
}

func sendBatch(ctx context.Context, tx pgxv5.Tx, batch *pgxv5.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *GraphDBStorage) GetGraph(ctx context.Context, id string) (*common.Graph, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	g := &common.Graph{ID: id}

	rows, err := s.conn.Query(ctx, selectEntitiesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities of %s: %w", id, err)
	}
	for rows.Next() {
		var (
			e   common.Entity
			typ string
		)
		if err := rows.Scan(&e.ID, &e.Name, &typ, &e.Confidence, &e.Attributes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Type = common.EntityType(typ)
		if len(e.Attributes) == 0 {
			e.Attributes = nil
		}
		g.Entities = append(g.Entities, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entities of %s: %w", id, err)
	}

	rows, err = s.conn.Query(ctx, selectEdgesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges of %s: %w", id, err)
	}
	for rows.Next() {
		var (
			e    common.Edge
			kind string
		)
		if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Labels, &e.Evidence); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = common.RelationshipKind(kind)
		if len(e.Evidence) == 0 {
			e.Evidence = nil
		}
		g.Edges = append(g.Edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges of %s: %w", id, err)
	}

	return g, nil
}

func (s *GraphDBStorage) GetAliases(ctx context.Context, id string) (map[string]string, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, selectAliasesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases of %s: %w", id, err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var identity, canonical string
		if err := rows.Scan(&identity, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases[identity] = canonical
	}
	return aliases, rows.Err()
}

func (s *GraphDBStorage) ListGraphs(ctx context.Context) ([]store.GraphInfo, error) {
	rows, err := s.conn.Query(ctx, listGraphsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer rows.Close()

	var infos []store.GraphInfo
	for rows.Next() {
		var info store.GraphInfo
		if err := rows.Scan(&info.ID, &info.Seeds, &info.Summary, &info.UpdatedAt, &info.Entities, &info.Edges); err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *GraphDBStorage) DeleteGraph(ctx context.Context, id string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tag, err := s.conn.Exec(ctx, deleteGraphSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrGraphNotFound, id)
	}
	logger.Info("[Store] Graph deleted", "graph", id)
	return nil
}

func (s *GraphDBStorage) exists(ctx context.Context, id string) error {
	var found string
	err := s.conn.QueryRow(ctx, graphExistsSQL, id).Scan(&found)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrGraphNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up graph %s: %w", id, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
