// Package downloader orchestrates track downloads: it routes URLs to source
// handlers, upgrades them to lossless DAB downloads when an ISRC can be
// found, and runs every new file through duplicate resolution, metadata
// review flagging, provenance tagging, and history recording.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/amalgan/trackman/config"
	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/history"
	"github.com/amalgan/trackman/provenance"
	"github.com/amalgan/trackman/ratelimit"
	"github.com/amalgan/trackman/review"
	"github.com/amalgan/trackman/sources"
	"github.com/amalgan/trackman/sources/dab"
	"github.com/amalgan/trackman/sources/songlink"
	"github.com/amalgan/trackman/sources/spotify"
	"github.com/amalgan/trackman/tags"
)

// ConfirmFunc asks the operator a yes/no question. Injectable for tests.
type ConfirmFunc func(message string) (bool, error)

// SurveyConfirm prompts on the terminal.
func SurveyConfirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{Message: message} //nolint:exhaustruct
	if err := survey.AskOne(prompt, &ok); nil != err {
		return false, fmt.Errorf("failed to ask for confirmation: %v", err)
	}

	return ok, nil
}

type Downloader struct {
	logger   zerolog.Logger
	conf     *config.Config
	reader   tags.Reader
	resolver *dedupe.Resolver
	reviews  *review.Queue
	hist     *history.Store
	dab      *dab.Client
	songlink *songlink.Client
	spotify  *spotify.Client
	outDir   string
	confirm  ConfirmFunc
}

// New wires the full download pipeline. outDir overrides the configured
// library directory when non-empty. The history store stays open for the
// Downloader's lifetime; Close releases it.
func New(
	logger zerolog.Logger,
	conf *config.Config,
	limiters *ratelimit.Set,
	outDir string,
	confirm ConfirmFunc,
) (*Downloader, error) {
	outDir = lo.Ternary(outDir != "", outDir, conf.Library.Dir)
	if err := os.MkdirAll(outDir, 0o755); nil != err {
		return nil, fmt.Errorf("failed to create output directory: %v", err)
	}

	reader := tags.NewReader()

	policy, err := dedupe.ParsePolicy(conf.Duplicates.Handling)
	if nil != err {
		return nil, err
	}
	resolver := dedupe.NewResolver(
		logger,
		reader,
		dedupe.OSRemover{},
		outDir,
		policy,
		&dedupe.ConsoleDecider{In: os.Stdin, Out: os.Stdout},
	)

	hist, err := history.NewStore(conf.Library.HistoryPath)
	if nil != err {
		return nil, err
	}

	slClient, err := songlink.NewClient(logger, limiters.Songlink, conf.Network.SOCKS5Proxy)
	if nil != err {
		return nil, err
	}

	spClient, err := spotify.NewClient(
		logger,
		limiters.Spotify,
		conf.Spotify.ClientID,
		conf.Spotify.ClientSecret,
		conf.Network.SOCKS5Proxy,
	)
	if nil != err {
		return nil, err
	}

	var dabClient *dab.Client
	if conf.DAB.Enabled() {
		dabClient, err = dab.NewClient(logger, conf.DAB, limiters.DAB, conf.Network.SOCKS5Proxy)
		if nil != err {
			return nil, err
		}
	}

	return &Downloader{
		logger:   logger,
		conf:     conf,
		reader:   reader,
		resolver: resolver,
		reviews:  review.NewQueue(logger, reader, conf.Library.ReviewCSV),
		hist:     hist,
		dab:      dabClient,
		songlink: slClient,
		spotify:  spClient,
		outDir:   outDir,
		confirm:  confirm,
	}, nil
}

func (d *Downloader) Close() error {
	return d.hist.Close()
}

// Download fetches whatever the URL names: a single track or, for YouTube and
// SoundCloud URLs, a whole playlist after operator confirmation. Failures are
// appended to the failed-downloads log.
func (d *Downloader) Download(ctx context.Context, rawURL, format string) error {
	srcType, err := sources.Detect(rawURL)
	if nil != err {
		return err
	}

	format = d.resolveFormat(format)
	d.logger.
		Info().
		Str("source", string(srcType)).
		Str("format", format).
		Str("output", d.outDir).
		Msg("Starting download")

	if srcType == sources.TypeYouTube || srcType == sources.TypeSoundCloud {
		playlist, err := sources.ProbePlaylist(ctx, d.logger, rawURL)
		if nil != err {
			d.logFailure(rawURL, err)
			return err
		}

		if playlist.IsPlaylist() {
			return d.downloadPlaylist(ctx, rawURL, format, playlist)
		}
	}

	if err := d.downloadTrack(ctx, rawURL, srcType, format, ""); nil != err {
		d.logFailure(rawURL, err)
		return err
	}

	return nil
}

func (d *Downloader) resolveFormat(format string) string {
	if format == "" {
		format = d.conf.Downloads.DefaultFormat
	}

	// yt-dlp and spotdl need a concrete container.
	return lo.Ternary(format == "auto", "m4a", format)
}

func (d *Downloader) downloadPlaylist(
	ctx context.Context,
	playlistURL, format string,
	playlist sources.Playlist,
) error {
	d.logger.
		Info().
		Str("title", playlist.Title).
		Int("tracks", len(playlist.Entries)).
		Msg("Playlist detected")

	// A playlist URL is easy to paste by accident, so confirmation is
	// unconditional; past the threshold the question spells out the size.
	message := fmt.Sprintf("Download all %d tracks?", len(playlist.Entries))
	if len(playlist.Entries) > d.conf.Downloads.PlaylistThreshold {
		message = fmt.Sprintf(
			"This playlist has %d tracks, which will take a while. Download all of them?",
			len(playlist.Entries),
		)
	}

	ok, err := d.confirm(message)
	if nil != err {
		return err
	}
	if !ok {
		d.logger.Info().Msg("Playlist download cancelled")
		return nil
	}

	var failed int
	for i, entry := range playlist.Entries {
		d.logger.
			Info().
			Int("index", i+1).
			Int("total", len(playlist.Entries)).
			Str("title", entry.Title).
			Msg("Downloading playlist entry")

		srcType, err := sources.Detect(entry.URL)
		if nil != err {
			d.logFailure(entry.URL, err)
			failed++
			continue
		}

		if err := d.downloadTrack(ctx, entry.URL, srcType, format, playlistURL); nil != err {
			if errors.Is(err, context.Canceled) {
				return err
			}

			d.logger.Error().Err(err).Str("url", entry.URL).Msg("Playlist entry failed")
			d.logFailure(entry.URL, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d playlist tracks failed", failed, len(playlist.Entries))
	}

	return nil
}

// downloadTrack fetches one track: first the smart path (ISRC to a lossless
// DAB download), then the original source as fallback.
func (d *Downloader) downloadTrack(
	ctx context.Context,
	rawURL string,
	srcType sources.Type,
	format, playlistURL string,
) error {
	if entry, found, err := d.hist.Find(ctx, rawURL); nil == err && found {
		d.logger.
			Info().
			Str("url", rawURL).
			Str("path", entry.Path).
			Time("downloaded_at", entry.DownloadedAt).
			Msg("Track already downloaded, skipping")

		return nil
	}

	if srcType != sources.TypeDirect {
		done, err := d.trySmartDownload(ctx, rawURL, srcType, playlistURL)
		if nil != err {
			d.logger.Warn().Err(err).Msg("Smart download failed, falling back to source")
		}
		if done {
			return nil
		}
	}

	return d.downloadFromSource(ctx, rawURL, srcType, format, playlistURL)
}

// lookupISRC resolves the track's ISRC and canonical metadata, going through
// song.link for non-Spotify URLs.
func (d *Downloader) lookupISRC(
	ctx context.Context,
	rawURL string,
	srcType sources.Type,
) (spotify.Track, bool, error) {
	if !d.spotify.Enabled() {
		return spotify.Track{}, false, nil
	}

	spotifyURL := rawURL
	if srcType != sources.TypeSpotify {
		u, err := d.songlink.FindSpotifyURL(ctx, rawURL)
		if nil != err {
			return spotify.Track{}, false, err
		}
		if u == "" {
			d.logger.Info().Msg("No song.link match, downloading from original source")
			return spotify.Track{}, false, nil
		}
		spotifyURL = u
	}

	trackID := spotify.ExtractTrackID(spotifyURL)
	if trackID == "" {
		return spotify.Track{}, false, nil
	}

	track, err := d.spotify.LookupTrack(ctx, trackID)
	if nil != err {
		return spotify.Track{}, false, err
	}

	return track, track.ISRC != "", nil
}

// trySmartDownload attempts the ISRC -> DAB -> M4A pipeline. It reports
// whether the track was fully handled; (false, nil) means the caller should
// fall back to the original source.
func (d *Downloader) trySmartDownload(
	ctx context.Context,
	rawURL string,
	srcType sources.Type,
	playlistURL string,
) (bool, error) {
	if d.dab == nil {
		return false, nil
	}

	track, found, err := d.lookupISRC(ctx, rawURL, srcType)
	if nil != err || !found {
		return false, err
	}

	d.logger.Info().Str("isrc", track.ISRC).Msg("Found ISRC, trying DAB")

	hit, err := d.dab.SearchByISRC(ctx, track.ISRC)
	if nil != err {
		if errors.Is(err, dab.ErrTrackNotFound) {
			d.logger.Info().Msg("Track not found on DAB")
			return false, nil
		}

		return false, err
	}

	artist := lo.Ternary(track.Artist() != "", track.Artist(), hit.Artist)
	title := lo.Ternary(track.Title != "", track.Title, hit.Title)

	flacPath := filepath.Join(
		d.outDir,
		fmt.Sprintf("%s - %s.flac", review.SanitizeFilename(artist), review.SanitizeFilename(title)),
	)
	if err := d.dab.DownloadTrack(ctx, hit.ID, dab.QualityFLAC, flacPath); nil != err {
		return false, err
	}

	m4aPath, err := convertToM4A(ctx, flacPath)
	if nil != err {
		// The FLAC is intact; keep it rather than losing the download.
		d.logger.Warn().Err(err).Msg("Conversion failed, keeping FLAC")
		m4aPath = flacPath
	}

	if err := tags.WriteMetadata(ctx, m4aPath, artist, title); nil != err {
		return false, err
	}

	prov := provenance.Provenance{ //nolint:exhaustruct
		TrackURL:       rawURL,
		PlaylistURL:    playlistURL,
		Source:         "dab",
		OriginalFormat: "flac",
		ISRC:           track.ISRC,
	}
	if err := prov.Apply(ctx, m4aPath); nil != err {
		return false, err
	}

	return true, d.finalize(ctx, m4aPath, rawURL, track.ISRC, "dab")
}

// downloadFromSource fetches through the URL's own service and runs the
// common post-processing.
func (d *Downloader) downloadFromSource(
	ctx context.Context,
	rawURL string,
	srcType sources.Type,
	format, playlistURL string,
) error {
	var (
		path string
		err  error
	)
	switch srcType {
	case sources.TypeSpotify:
		path, err = sources.FetchSpotDL(ctx, d.logger, rawURL, d.outDir, format)
	case sources.TypeYouTube, sources.TypeSoundCloud:
		path, err = sources.FetchYTDLP(ctx, d.logger, rawURL, d.outDir, format)
	case sources.TypeDirect:
		path, err = sources.FetchDirect(ctx, d.logger, rawURL, d.outDir, d.conf.Network.SOCKS5Proxy)
	default:
		return fmt.Errorf("unsupported source type: %s", srcType)
	}
	if nil != err {
		return err
	}

	artist, title := dedupe.ExtractMetadata(d.reader, path)

	finalPath := path
	if artist != "" && title != "" {
		name := fmt.Sprintf(
			"%s - %s%s",
			review.SanitizeFilename(artist),
			review.SanitizeFilename(title),
			filepath.Ext(path),
		)
		finalPath = filepath.Join(d.outDir, name)
		if finalPath != path {
			if _, statErr := os.Stat(finalPath); nil == statErr {
				finalPath = path
			} else if err := os.Rename(path, finalPath); nil != err {
				return fmt.Errorf("failed to rename download: %v", err)
			}
		}
	}

	prov := provenance.Provenance{ //nolint:exhaustruct
		TrackURL:       rawURL,
		PlaylistURL:    playlistURL,
		Source:         string(srcType),
		OriginalFormat: strings.TrimPrefix(filepath.Ext(finalPath), "."),
	}
	if err := prov.Apply(ctx, finalPath); nil != err {
		d.logger.Warn().Err(err).Msg("Failed to write provenance tags")
	}

	if artist == "" || title == "" {
		if err := d.reviews.Flag(finalPath, "Missing or incomplete metadata from download", rawURL); nil != err {
			d.logger.Warn().Err(err).Msg("Failed to flag download for review")
		}
	}

	return d.finalize(ctx, finalPath, rawURL, "", string(srcType))
}

// finalize runs duplicate resolution and records the download. A skip verdict
// deletes the freshly downloaded file.
func (d *Downloader) finalize(ctx context.Context, path, rawURL, isrc, source string) error {
	skip, err := d.resolver.Resolve(path)
	if nil != err {
		return err
	}
	if skip {
		if err := os.Remove(path); nil != err {
			return fmt.Errorf("failed to remove duplicate download: %v", err)
		}

		d.logger.Info().Str("path", filepath.Base(path)).Msg("Skipped duplicate download")
		return nil
	}

	entry := history.Entry{
		URL:          rawURL,
		ISRC:         isrc,
		Path:         path,
		Source:       source,
		DownloadedAt: time.Now().UTC(),
	}
	if err := d.hist.Record(ctx, entry); nil != err {
		d.logger.Warn().Err(err).Msg("Failed to record download history")
	}

	d.logger.Info().Str("path", filepath.Base(path)).Msg("Download complete")

	return nil
}

// convertToM4A transcodes a FLAC download to 256kbps AAC, carrying the
// metadata over, and removes the FLAC on success.
func convertToM4A(ctx context.Context, flacPath string) (string, error) {
	m4aPath := strings.TrimSuffix(flacPath, filepath.Ext(flacPath)) + ".m4a"

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-i", flacPath,
		"-vn",
		"-c:a", "aac",
		"-b:a", "256k",
		"-movflags", "+faststart",
		"-map_metadata", "0",
		"-y",
		m4aPath,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true} //nolint:exhaustruct
	if err := cmd.Run(); nil != err {
		return "", fmt.Errorf("failed to convert %s to m4a: %v", flacPath, err)
	}

	if err := os.Remove(flacPath); nil != err {
		return "", fmt.Errorf("failed to remove converted flac: %v", err)
	}

	return m4aPath, nil
}

// logFailure appends to the failed-downloads log, one line per failure.
func (d *Downloader) logFailure(rawURL string, cause error) {
	line := fmt.Sprintf("%s | %s | %v\n", time.Now().Format("2006-01-02 15:04"), rawURL, cause)

	f, err := os.OpenFile(d.conf.Library.FailedLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if nil != err {
		d.logger.Error().Err(err).Msg("Failed to open failed-downloads log")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); nil != err {
		d.logger.Error().Err(err).Msg("Failed to write failed-downloads log")
	}
}
