package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/venuefeed/internal/engagement"
)

// strongSignal is the SQL predicate matching engagement rows that count as
// strong social signals. Must agree with engagement.IsStrongSignal.
const strongSignal = "(action IN ('saved', 'shared') OR (action = 'viewed' AND watch_time >= 10))"

// PostgresStore implements Store and Recorder against PostgreSQL. The
// two-hop friend traversal is expressed as self-joins on the friendships
// table; each friendship is stored once with user_a < user_b.
//
// Expected tables: users, friendships, videos, engagement_latest,
// engagement_history, venue_shares.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// friendsCTE selects the IDs of $1's direct friends, traversing the stored
// pair in either direction without double-counting.
const friendsCTE = `
SELECT CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END AS id
FROM friendships f
WHERE f.user_a = $1 OR f.user_b = $1`

// UpsertUser stores a user's profile.
func (s *PostgresStore) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, interests, archetype)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    interests = EXCLUDED.interests,
		    archetype = EXCLUDED.archetype`,
		u.ID, u.Name, pq.Array(u.Interests), u.Archetype)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// UpsertVideo registers venue ownership for a video.
func (s *PostgresStore) UpsertVideo(ctx context.Context, videoID, venueID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, venue_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET venue_id = EXCLUDED.venue_id`,
		videoID, venueID)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", videoID, err)
	}
	return nil
}

// AddFriendship creates a symmetric friendship, stored once in normalized
// order. Idempotent.
func (s *PostgresStore) AddFriendship(ctx context.Context, userA, userB string) error {
	if userA == userB {
		return nil
	}
	if userA > userB {
		userA, userB = userB, userA
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friendships (user_a, user_b)
		VALUES ($1, $2)
		ON CONFLICT (user_a, user_b) DO NOTHING`,
		userA, userB)
	if err != nil {
		return fmt.Errorf("add friendship %s-%s: %w", userA, userB, err)
	}
	return nil
}

// RecordEngagement persists an observation under the two-tier policy.
// Weak actions upsert the latest-state row; the ON CONFLICT clause keeps a
// strong label from being downgraded while still refreshing watch_time,
// weight and timestamp. Strong actions additionally append a history row.
func (s *PostgresStore) RecordEngagement(ctx context.Context, userID, itemID, rawAction string, watchTimeSeconds int) (engagement.Edge, error) {
	action, weight := engagement.Classify(rawAction, watchTimeSeconds)
	edge := engagement.Edge{
		ID:        uuid.NewString(),
		UserID:    userID,
		ItemID:    itemID,
		Action:    action,
		WatchTime: watchTimeSeconds,
		Weight:    weight,
		Timestamp: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return engagement.Edge{}, fmt.Errorf("begin engagement tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if engagement.IsStrong(action) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO engagement_history (id, user_id, item_id, action, watch_time, weight, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			edge.ID, userID, itemID, string(action), watchTimeSeconds, weight, edge.Timestamp); err != nil {
			return engagement.Edge{}, fmt.Errorf("append engagement history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO engagement_latest (user_id, item_id, action, watch_time, weight, ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, item_id) DO UPDATE
			SET action = EXCLUDED.action,
			    watch_time = EXCLUDED.watch_time,
			    weight = EXCLUDED.weight,
			    ts = EXCLUDED.ts`,
			userID, itemID, string(action), watchTimeSeconds, weight, edge.Timestamp); err != nil {
			return engagement.Edge{}, fmt.Errorf("upsert engagement state: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO engagement_latest (user_id, item_id, action, watch_time, weight, ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, item_id) DO UPDATE
			SET action = CASE
			        WHEN engagement_latest.action IN ('saved', 'shared') THEN engagement_latest.action
			        ELSE EXCLUDED.action
			    END,
			    watch_time = EXCLUDED.watch_time,
			    weight = EXCLUDED.weight,
			    ts = EXCLUDED.ts`,
			userID, itemID, string(action), watchTimeSeconds, weight, edge.Timestamp); err != nil {
			return engagement.Edge{}, fmt.Errorf("upsert engagement state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return engagement.Edge{}, fmt.Errorf("commit engagement tx: %w", err)
	}
	return edge, nil
}

// RecordShare records a share edge per recipient.
func (s *PostgresStore) RecordShare(ctx context.Context, userID, venueID string, sharedWith []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin share tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, friendID := range sharedWith {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO venue_shares (id, from_user_id, to_user_id, venue_id, ts)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), userID, friendID, venueID, now); err != nil {
			return fmt.Errorf("insert share edge: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit share tx: %w", err)
	}
	s.logger.Debug("recorded venue share",
		slog.String("user_id", userID),
		slog.String("venue_id", venueID),
		slog.Int("recipients", len(sharedWith)))
	return nil
}

// FriendsOf returns the user's direct friends.
func (s *PostgresStore) FriendsOf(ctx context.Context, userID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`)
		SELECT u.id, u.name, COALESCE(u.interests, '{}'), COALESCE(u.archetype, '')
		FROM friends f
		JOIN users u ON u.id = f.id
		ORDER BY u.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends of %s: %w", userID, err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// StrongItemEngagements returns friends' strong engagements with an item,
// one row per (friend, action) using the highest watch time observed.
func (s *PostgresStore) StrongItemEngagements(ctx context.Context, userID, itemID string) ([]FriendEngagement, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`),
		edges AS (
			SELECT user_id, action, watch_time
			FROM engagement_latest
			WHERE item_id = $2 AND user_id IN (SELECT id FROM friends) AND `+strongSignal+`
			UNION ALL
			SELECT user_id, action, watch_time
			FROM engagement_history
			WHERE item_id = $2 AND user_id IN (SELECT id FROM friends) AND `+strongSignal+`
		)
		SELECT e.user_id, COALESCE(u.name, e.user_id), e.action, MAX(e.watch_time)
		FROM edges e
		LEFT JOIN users u ON u.id = e.user_id
		GROUP BY e.user_id, u.name, e.action
		ORDER BY e.user_id, e.action`, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("query item engagements: %w", err)
	}
	defer rows.Close()

	var out []FriendEngagement
	for rows.Next() {
		var fe FriendEngagement
		var action string
		if err := rows.Scan(&fe.FriendID, &fe.FriendName, &action, &fe.WatchTime); err != nil {
			return nil, fmt.Errorf("scan item engagement: %w", err)
		}
		fe.Action = engagement.Action(action)
		out = append(out, fe)
	}
	return out, rows.Err()
}

// StrongVenueEngagements returns distinct friends strongly engaged with
// other videos of the venue.
func (s *PostgresStore) StrongVenueEngagements(ctx context.Context, userID, venueID, excludeItemID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`),
		edges AS (
			SELECT user_id, item_id, action, watch_time FROM engagement_latest
			UNION ALL
			SELECT user_id, item_id, action, watch_time FROM engagement_history
		)
		SELECT DISTINCT u.id, u.name, COALESCE(u.interests, '{}'), COALESCE(u.archetype, '')
		FROM edges e
		JOIN videos v ON v.id = e.item_id
		JOIN users u ON u.id = e.user_id
		WHERE v.venue_id = $2
		  AND e.item_id <> $3
		  AND e.user_id IN (SELECT id FROM friends)
		  AND `+strongSignal+`
		ORDER BY u.id`, userID, venueID, excludeItemID)
	if err != nil {
		return nil, fmt.Errorf("query venue engagements: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// MutualFriendsEngaged returns second-degree connections with strong
// engagement on the item, via a friendships self-join.
func (s *PostgresStore) MutualFriendsEngaged(ctx context.Context, userID, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`),
		mutuals AS (
			SELECT DISTINCT CASE WHEN f2.user_a = f.id THEN f2.user_b ELSE f2.user_a END AS id
			FROM friends f
			JOIN friendships f2 ON f2.user_a = f.id OR f2.user_b = f.id
		)
		SELECT DISTINCT m.id
		FROM mutuals m
		JOIN (
			SELECT user_id, item_id, action, watch_time FROM engagement_latest
			UNION ALL
			SELECT user_id, item_id, action, watch_time FROM engagement_history
		) e ON e.user_id = m.id
		WHERE m.id <> $1
		  AND m.id NOT IN (SELECT id FROM friends)
		  AND e.item_id = $2
		  AND `+strongSignal+`
		ORDER BY m.id`, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("query mutual engagements: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// VenueSharers returns distinct direct friends who pushed the venue via a
// share edge.
func (s *PostgresStore) VenueSharers(ctx context.Context, userID, venueID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`)
		SELECT DISTINCT u.id, u.name, COALESCE(u.interests, '{}'), COALESCE(u.archetype, '')
		FROM venue_shares vs
		JOIN users u ON u.id = vs.from_user_id
		WHERE vs.venue_id = $2 AND vs.from_user_id IN (SELECT id FROM friends)
		ORDER BY u.id`, userID, venueID)
	if err != nil {
		return nil, fmt.Errorf("query venue sharers: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// SeenItems returns items the user has engaged with through any action.
func (s *PostgresStore) SeenItems(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item_id FROM (
			SELECT item_id FROM engagement_latest WHERE user_id = $1
			UNION ALL
			SELECT item_id FROM engagement_history WHERE user_id = $1
		) seen
		ORDER BY item_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query seen items: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// FriendEngagedItems returns items the user's friends strongly engaged
// with, highest watch time first.
func (s *PostgresStore) FriendEngagedItems(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH friends AS (`+friendsCTE+`),
		edges AS (
			SELECT item_id, watch_time FROM engagement_latest
			WHERE user_id IN (SELECT id FROM friends) AND `+strongSignal+`
			UNION ALL
			SELECT item_id, watch_time FROM engagement_history
			WHERE user_id IN (SELECT id FROM friends) AND `+strongSignal+`
		)
		SELECT item_id
		FROM edges
		GROUP BY item_id
		ORDER BY MAX(watch_time) DESC, item_id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query friend engaged items: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// RecentEngagementCount counts engagements against the item inside the
// lookback window.
func (s *PostgresStore) RecentEngagementCount(ctx context.Context, itemID string, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM engagement_latest WHERE item_id = $1 AND ts >= $2
			UNION ALL
			SELECT 1 FROM engagement_history WHERE item_id = $1 AND ts >= $2
		) recent`, itemID, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent engagements: %w", err)
	}
	return count, nil
}

// WatchHistory returns the user's engagement history, newest first.
func (s *PostgresStore) WatchHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, action, watch_time, ts FROM (
			SELECT item_id, action, watch_time, ts FROM engagement_latest WHERE user_id = $1
			UNION ALL
			SELECT item_id, action, watch_time, ts FROM engagement_history WHERE user_id = $1
		) history
		ORDER BY ts DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var action string
		if err := rows.Scan(&h.ItemID, &action, &h.WatchTime, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		h.Action = engagement.Action(action)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Users returns all users ordered by name.
func (s *PostgresStore) Users(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(interests, '{}'), COALESCE(archetype, '')
		FROM users
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// GetUser returns a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	var interests pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(interests, '{}'), COALESCE(archetype, '')
		FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Name, &interests, &u.Archetype)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user %s: %w", userID, err)
	}
	u.Interests = interests
	return u, nil
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		var u User
		var interests pq.StringArray
		if err := rows.Scan(&u.ID, &u.Name, &interests, &u.Archetype); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Interests = interests
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
