package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-simulator/internal/store"
	"trade-simulator/internal/trader"
)

var _ store.TraderStore = (*TraderStore)(nil)

// TraderStore PostgreSQL 实现
type TraderStore struct {
	pool *Pool
}

// NewTraderStore 创建 PostgreSQL 交易者状态存储
func NewTraderStore(pool *Pool) *TraderStore {
	return &TraderStore{pool: pool}
}

// Save 在一个事务内替换键下的全部交易者状态
func (s *TraderStore) Save(ctx context.Context, key string, states []trader.State) error {
	if err := store.ValidateSave(key, states); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM trader_states WHERE result_key = $1`, key); err != nil {
			return fmt.Errorf("清理旧状态失败: %w", err)
		}

		batch := &pgx.Batch{}
		for _, st := range states {
			data, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("序列化交易者 %s 失败: %w", st.Name, err)
			}
			batch.Queue(`
				INSERT INTO trader_states (result_key, trader_name, state, updated_at)
				VALUES ($1, $2, $3, NOW())
			`, key, st.Name, data)
		}

		results := tx.SendBatch(ctx, batch)
		for range states {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				if isDuplicateKeyError(err) {
					return store.ErrDuplicateKey
				}
				return fmt.Errorf("写入交易者状态失败: %w", err)
			}
		}
		return results.Close()
	})
}

// Load 读取键下的全部交易者状态
func (s *TraderStore) Load(ctx context.Context, key string) ([]trader.State, error) {
	if key == "" {
		return nil, store.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT state
		FROM trader_states
		WHERE result_key = $1
		ORDER BY trader_name
	`, key)
	if err != nil {
		return nil, fmt.Errorf("查询交易者状态失败: %w", err)
	}
	defer rows.Close()

	var out []trader.State
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("读取交易者状态失败: %w", err)
		}
		var st trader.State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("反序列化交易者状态失败: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取交易者状态失败: %w", err)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

// Keys 全部键
func (s *TraderStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT result_key FROM trader_states ORDER BY result_key`)
	if err != nil {
		return nil, fmt.Errorf("查询键失败: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("读取键失败: %w", err)
	}
	return keys, nil
}

// Delete 删除键
func (s *TraderStore) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trader_states WHERE result_key = $1`, key)
	if err != nil {
		return fmt.Errorf("删除交易者状态失败: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdatedAt 键的最近写入时间（Unix 秒）
func (s *TraderStore) UpdatedAt(ctx context.Context, key string) (int64, error) {
	var ts int64
	err := s.pool.QueryRow(ctx, `
		SELECT EXTRACT(EPOCH FROM MAX(updated_at))::BIGINT
		FROM trader_states
		WHERE result_key = $1
		HAVING COUNT(*) > 0
	`, key).Scan(&ts)
	if err != nil {
		if isNotFoundError(err) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("查询写入时间失败: %w", err)
	}
	return ts, nil
}
