package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type matchRepo struct{}

// NewMatchRepository returns a pgx-backed MatchRepository.
func NewMatchRepository() MatchRepository {
	return &matchRepo{}
}

const matchColumns = `id, home_team, away_team, status, result,
	home_team_score, away_team_score, kickoff_at, updated_at`

func (r *matchRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Match, error) {
	row := db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *matchRepo) ListFinishedWithOpenBets(ctx context.Context, db DBTX, limit int) ([]domain.Match, error) {
	rows, err := db.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches m
		WHERE m.status = 'finished'
		  AND EXISTS (SELECT 1 FROM bets b WHERE b.match_id = m.id AND b.status = 'open')
		ORDER BY m.updated_at ASC, m.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list finished matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	var status string
	var result *string
	err := row.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &status, &result,
		&m.HomeTeamScore, &m.AwayTeamScore, &m.KickoffAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}
	m.Status = domain.MatchStatus(status)
	if result != nil {
		res := domain.MatchResult(*result)
		m.Result = &res
	}
	return &m, nil
}
