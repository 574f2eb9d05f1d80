package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

type SetResultRepository interface {
	ListByMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID) ([]models.SetResult, error)
	ListByMatches(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, matchIDs []uuid.UUID) (map[uuid.UUID][]models.SetResult, error)
	// ReplaceForMatch atomically swaps the stored sets of a match for the
	// reported ones (delete + bulk insert in the caller's transaction).
	ReplaceForMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID, sets []models.SetScore) error
	DeleteByMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID) error
}

type postgresSetResultRepository struct{}

func NewPostgresSetResultRepository() SetResultRepository {
	return &postgresSetResultRepository{}
}

const setResultColumns = `
	id, tenant_id, match_id, set_number, team1_games, team2_games,
	tiebreak_team1, tiebreak_team2`

func (r *postgresSetResultRepository) ListByMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID) ([]models.SetResult, error) {
	byMatch, err := r.ListByMatches(ctx, q, tenantID, []uuid.UUID{matchID})
	if err != nil {
		return nil, err
	}
	return byMatch[matchID], nil
}

func (r *postgresSetResultRepository) ListByMatches(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, matchIDs []uuid.UUID) (map[uuid.UUID][]models.SetResult, error) {
	result := make(map[uuid.UUID][]models.SetResult, len(matchIDs))
	if len(matchIDs) == 0 {
		return result, nil
	}

	args := make([]interface{}, 0, len(matchIDs)+1)
	args = append(args, tenantID)
	placeholders := make([]string, len(matchIDs))
	for i, id := range matchIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT` + setResultColumns + `
		FROM set_results
		WHERE tenant_id = $1 AND match_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY match_id, set_number ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s models.SetResult
		if err := rows.Scan(
			&s.ID,
			&s.TenantID,
			&s.MatchID,
			&s.SetNumber,
			&s.Team1Games,
			&s.Team2Games,
			&s.TiebreakTeam1,
			&s.TiebreakTeam2,
		); err != nil {
			return nil, err
		}
		result[s.MatchID] = append(result[s.MatchID], s)
	}
	return result, rows.Err()
}

func (r *postgresSetResultRepository) ReplaceForMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID, sets []models.SetScore) error {
	if err := r.DeleteByMatch(ctx, q, tenantID, matchID); err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}

	const cols = 8
	var query strings.Builder
	query.WriteString(`
		INSERT INTO set_results
			(id, tenant_id, match_id, set_number, team1_games, team2_games,
			 tiebreak_team1, tiebreak_team2)
		VALUES `)

	args := make([]interface{}, 0, len(sets)*cols)
	for i, set := range sets {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("(")
		for j := 1; j <= cols; j++ {
			if j > 1 {
				query.WriteString(", ")
			}
			fmt.Fprintf(&query, "$%d", i*cols+j)
		}
		query.WriteString(")")

		setNumber := set.SetNumber
		if setNumber == 0 {
			setNumber = i + 1
		}
		args = append(args,
			uuid.New(), tenantID, matchID, setNumber,
			set.Team1Games, set.Team2Games, set.TiebreakTeam1, set.TiebreakTeam2,
		)
	}

	_, err := q.ExecContext(ctx, query.String(), args...)
	return err
}

func (r *postgresSetResultRepository) DeleteByMatch(ctx context.Context, q SQLExecutor, tenantID, matchID uuid.UUID) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM set_results WHERE tenant_id = $1 AND match_id = $2`,
		tenantID, matchID)
	return err
}
