package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/supportlens/supportlens/internal/service"
)

// VectorRepository stores chunk embeddings in the kb_vectors table and serves
// cosine similarity queries over them.
type VectorRepository struct {
	db dbtx
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{db: pool}
}

func NewVectorRepositoryWithTx(tx pgx.Tx) *VectorRepository {
	return &VectorRepository{db: tx}
}

func (r *VectorRepository) Upsert(ctx context.Context, namespace string, records []service.VectorRecord) error {
	for _, rec := range records {
		_, err := r.db.Exec(ctx,
			`INSERT INTO kb_vectors (namespace, id, embedding, source, chunk_text, chunk_index)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (namespace, id) DO UPDATE
			 SET embedding = EXCLUDED.embedding,
			     source = EXCLUDED.source,
			     chunk_text = EXCLUDED.chunk_text,
			     chunk_index = EXCLUDED.chunk_index`,
			namespace, rec.ID, pgvector.NewVector(rec.Embedding), rec.Source, rec.Text, rec.ChunkIndex,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *VectorRepository) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]service.VectorMatch, error) {
	if topK <= 0 {
		topK = service.DefaultTopK
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, source, chunk_text,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM kb_vectors
		 WHERE namespace = $2
		 ORDER BY score DESC
		 LIMIT $3`,
		pgvector.NewVector(embedding), namespace, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []service.VectorMatch
	for rows.Next() {
		var m service.VectorMatch
		var source, text *string
		if err := rows.Scan(&m.ID, &source, &text, &m.Score); err != nil {
			return nil, err
		}
		if source != nil {
			m.Source = *source
		}
		if text != nil {
			m.Text = *text
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *VectorRepository) DeleteMany(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM kb_vectors WHERE namespace = $1 AND id = ANY($2)`,
		namespace, ids,
	)
	return err
}

func (r *VectorRepository) ListIDs(ctx context.Context, namespace string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM kb_vectors WHERE namespace = $1 ORDER BY id`,
		namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
