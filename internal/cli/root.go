// Package cli maps a Tautulli notification invocation onto one of the four
// actions: authenticate, refresh, sync a movie, sync an episode.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"traktsync/config"
	"traktsync/internal/logging"
	"traktsync/services/trakt"
)

const (
	contentTypeAuthenticate = "trakt_authenticate"
	contentTypeRefresh      = "trakt_refresh"
	contentTypeMovie        = "movie"
	contentTypeEpisode      = "episode"

	// bootstrapUserID runs unconditionally, bypassing the allow-list. Used
	// for the one-time authentication bootstrap.
	bootstrapUserID = -1
)

type options struct {
	userID      int
	contentType string
	imdbID      string
	tvdbID      int
	season      int
	episode     int
	settings    string
	logFile     string
	verbose     bool
}

// NewRootCommand builds the traktsync command. Flag names mirror the script
// arguments Tautulli passes to notification agents.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "traktsync",
		Short: "Sync one watched movie or episode from Tautulli to Trakt.tv",
		Long: `traktsync records a single watched event into your Trakt.tv history.
It is meant to be invoked by Tautulli as a notification script with
--userId {user_id} --contentType {media_type} plus the movie or episode
identifiers. Run it once by hand with --contentType trakt_authenticate
--userId -1 to link your Trakt application.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(logging.Options{
				Verbose:  opts.verbose,
				FilePath: opts.logFile,
			})
			manager := config.NewManager(settingsPath(opts.settings))
			return dispatch(opts, manager, "", cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.userID, "userId", 0, "user id of the watcher (-1 runs unconditionally)")
	flags.StringVar(&opts.contentType, "contentType", "", "trakt_authenticate, trakt_refresh, movie or episode")
	flags.StringVar(&opts.imdbID, "imdbId", "", "IMDB id of the watched movie")
	flags.IntVar(&opts.tvdbID, "tvdbId", 0, "TVDB id of the watched show")
	flags.IntVar(&opts.season, "season", 0, "season number")
	flags.IntVar(&opts.episode, "episode", 0, "episode number")
	flags.StringVar(&opts.settings, "settings", "", "settings file (default "+config.DefaultFileName+" next to the executable)")
	flags.StringVar(&opts.logFile, "logFile", "", "also append logs to this file, rotated")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	cobra.CheckErr(cmd.MarkFlagRequired("userId"))
	cobra.CheckErr(cmd.MarkFlagRequired("contentType"))

	return cmd
}

// dispatch runs exactly one action against the store. The baseURL override is
// only set by tests. All errors flow back to main, which decides the exit
// code; nothing in here terminates the process.
func dispatch(opts *options, manager *config.Manager, baseURL string, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	settings, err := manager.Load()
	if err != nil {
		return err
	}

	allowed, err := settings.SyncAllowed(opts.userID)
	if err != nil {
		return err
	}
	if !allowed && opts.userID != bootstrapUserID {
		logger.Info().Int("user_id", opts.userID).Msg("user not in allow-list, nothing to do")
		fmt.Fprintln(out, "We will not sync for this user")
		return nil
	}

	clientID, err := settings.Trakt.RequireClientID()
	if err != nil {
		return err
	}
	clientSecret, err := settings.Trakt.RequireClientSecret()
	if err != nil {
		return err
	}

	var clientOpts []trakt.Option
	if baseURL != "" {
		clientOpts = append(clientOpts, trakt.WithBaseURL(baseURL))
	}
	client := trakt.NewClient(clientID, clientSecret, clientOpts...)
	prompter := &trakt.StdinPrompter{In: in, Out: out}
	auth := trakt.NewAuthenticator(client, manager, prompter, logger)
	auth.SetOutput(out)

	switch opts.contentType {
	case contentTypeAuthenticate:
		return auth.Authenticate()

	case contentTypeRefresh:
		return auth.Refresh()

	case contentTypeMovie:
		if opts.imdbID == "" {
			return errors.New("--imdbId is required for contentType movie")
		}
		// Refresh first so the sync always runs on a fresh access token.
		if err := auth.Refresh(); err != nil {
			return err
		}
		syncer := trakt.NewSyncer(client, auth, logger)
		syncer.SetOutput(out)
		return syncer.SyncHistory(trakt.MediaRef{
			Type:   trakt.MediaTypeMovie,
			IMDBID: opts.imdbID,
		})

	case contentTypeEpisode:
		if opts.tvdbID == 0 {
			return errors.New("--tvdbId is required for contentType episode")
		}
		if opts.season <= 0 || opts.episode <= 0 {
			return errors.New("--season and --episode are required for contentType episode")
		}
		if err := auth.Refresh(); err != nil {
			return err
		}
		syncer := trakt.NewSyncer(client, auth, logger)
		syncer.SetOutput(out)
		return syncer.SyncHistory(trakt.MediaRef{
			Type:    trakt.MediaTypeEpisode,
			TVDBID:  opts.tvdbID,
			Season:  opts.season,
			Episode: opts.episode,
		})

	default:
		// Unknown types are reported but do not fail the invocation, so a
		// misconfigured trigger never floods Tautulli with script errors.
		logger.Error().Str("content_type", opts.contentType).Msg("invalid contentType")
		fmt.Fprintf(out, "ERROR: %s not found - invalid contentType\n", opts.contentType)
		return nil
	}
}

// settingsPath resolves the settings file location: an explicit flag wins,
// otherwise the default file next to the executable, falling back to the
// working directory.
func settingsPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	exe, err := os.Executable()
	if err != nil {
		return config.DefaultFileName
	}
	return filepath.Join(filepath.Dir(exe), config.DefaultFileName)
}
