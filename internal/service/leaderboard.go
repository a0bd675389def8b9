package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Board names persisted with the pinned message ids.
const (
	BoardRich  = "rich"
	BoardLevel = "level"
)

const boardSize = 10

// LeaderboardService renders the top-10 boards and keeps one pinned
// message per board refreshed in place.
type LeaderboardService struct {
	users    *repository.UserRepository
	boards   *repository.LeaderboardRepository
	notifier notify.Notifier
	channel  string
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(
	users *repository.UserRepository,
	boards *repository.LeaderboardRepository,
	notifier notify.Notifier,
	channel string,
) *LeaderboardService {
	return &LeaderboardService{users: users, boards: boards, notifier: notifier, channel: channel}
}

// TopRich returns the top players by currency.
func (s *LeaderboardService) TopRich(ctx context.Context) ([]*model.RichRank, error) {
	return s.users.TopByCurrency(ctx, boardSize)
}

// TopLevel returns the top players by level, exp breaking ties.
func (s *LeaderboardService) TopLevel(ctx context.Context) ([]*model.LevelRank, error) {
	return s.users.TopByLevel(ctx, boardSize)
}

// Refresh re-renders both boards, editing the stored pinned message or
// posting a fresh one when none exists yet.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	rich, err := s.TopRich(ctx)
	if err != nil {
		return err
	}
	if err := s.publish(ctx, BoardRich, renderRich(rich)); err != nil {
		return err
	}

	level, err := s.TopLevel(ctx)
	if err != nil {
		return err
	}
	return s.publish(ctx, BoardLevel, renderLevel(level))
}

func (s *LeaderboardService) publish(ctx context.Context, board, text string) error {
	channelID, messageID, err := s.boards.GetMessage(ctx, board)
	if err != nil {
		return err
	}

	if messageID != "" {
		if err := s.notifier.Edit(channelID, messageID, text); err == nil {
			return nil
		}
		// The old message may have been deleted; fall through and repost.
		log.Warn().Str("board", board).Msg("leaderboard edit failed, reposting")
	}

	newID, err := s.notifier.Send(s.channel, text)
	if err != nil {
		return fmt.Errorf("failed to post %s board: %w", board, err)
	}
	return s.boards.UpsertMessage(ctx, board, s.channel, newID)
}

func renderRich(rows []*model.RichRank) string {
	var b strings.Builder
	b.WriteString("Top 10 wealth\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. %s - %d\n", i+1, row.BaseName, row.Currency)
	}
	return b.String()
}

func renderLevel(rows []*model.LevelRank) string {
	var b strings.Builder
	b.WriteString("Top 10 level\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. %s - Lv %d (%d exp)\n", i+1, row.BaseName, row.Level, row.Exp)
	}
	return b.String()
}
