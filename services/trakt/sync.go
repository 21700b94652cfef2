package trakt

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// watchedAtFormat is the timestamp Trakt stores with the history record:
// UTC, second precision, fixed zero milliseconds, 'Z' suffix.
const watchedAtFormat = "2006-01-02T15:04:05.000Z"

// MediaType selects the variant of a MediaRef.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// MediaRef identifies the watched item from the notification arguments.
// Movies carry an IMDB id; episodes a show TVDB id plus season and episode
// numbers. A MediaRef lives for one invocation and is never persisted.
type MediaRef struct {
	Type    MediaType
	IMDBID  string
	TVDBID  int
	Season  int
	Episode int
}

// Syncer resolves provider-side metadata for one watched item and submits a
// single history record with a valid access token from the Authenticator.
type Syncer struct {
	client *Client
	auth   *Authenticator
	out    io.Writer
	logger zerolog.Logger
	now    func() time.Time
}

// NewSyncer creates a syncer over the shared client and authenticator.
func NewSyncer(client *Client, auth *Authenticator, logger zerolog.Logger) *Syncer {
	return &Syncer{
		client: client,
		auth:   auth,
		out:    os.Stdout,
		logger: logger,
		now:    time.Now,
	}
}

// SetOutput overrides where operator-facing messages are written.
func (s *Syncer) SetOutput(out io.Writer) {
	s.out = out
}

// SyncHistory resolves the item's Trakt identity, builds the history record
// stamped with the current time, and submits it. Submission is not retried.
func (s *Syncer) SyncHistory(ref MediaRef) error {
	accessToken, err := s.auth.AccessToken()
	if err != nil {
		return err
	}

	watchedAt := s.now().UTC().Truncate(time.Second).Format(watchedAtFormat)

	var request HistoryRequest
	switch ref.Type {
	case MediaTypeMovie:
		movie, err := s.client.SearchMovieByIMDB(ref.IMDBID)
		if err != nil {
			return err
		}
		request.Movies = []MovieEntry{{
			WatchedAt: watchedAt,
			Title:     movie.Title,
			Year:      movie.Year,
			IDs: MovieIDs{
				Trakt: movie.IDs.Trakt,
				Slug:  movie.IDs.Slug,
				IMDB:  movie.IDs.IMDB,
				TMDB:  movie.IDs.TMDB,
			},
		}}
	case MediaTypeEpisode:
		show, err := s.client.SearchShowByTVDB(ref.TVDBID)
		if err != nil {
			return err
		}
		episode, err := s.client.GetEpisode(show.IDs.Slug, ref.Season, ref.Episode)
		if err != nil {
			return err
		}
		request.Episodes = []EpisodeEntry{{
			WatchedAt: watchedAt,
			IDs: EpisodeIDs{
				Trakt: episode.IDs.Trakt,
				TVDB:  episode.IDs.TVDB,
				IMDB:  episode.IDs.IMDB,
				TMDB:  episode.IDs.TMDB,
			},
		}}
	default:
		return fmt.Errorf("unsupported media type %q", ref.Type)
	}

	resp, err := s.client.AddToHistory(accessToken, request)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("movies", resp.Added.Movies).
		Int("episodes", resp.Added.Episodes).
		Str("watched_at", watchedAt).
		Msg("history synced")
	fmt.Fprintln(s.out, "Synced watched history to Trakt.tv!")
	return nil
}
