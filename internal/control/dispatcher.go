// Package control routes decoded client commands to their handlers and maps
// every outcome into the wire envelope. Handlers either fully apply a store
// mutation or fully reject; nothing partial ever reaches a client.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podradio/internal/domain"
	"podradio/internal/store"
)

// Playback is the facade the dispatcher drives. Play may block until the
// backend confirms playback started; that blocking stays on the calling
// session's thread.
type Playback interface {
	Play(ctx context.Context, mediaURL string) error
	Pause() error
	Stop() error
	IsPlaying() bool
}

// FeedLoader fetches the episode list for a feed URL. The first episode is
// the latest one.
type FeedLoader interface {
	LoadEpisodes(ctx context.Context, feedURL string) ([]domain.Episode, error)
}

// ClientCounter reports how many client sessions are currently live.
type ClientCounter interface {
	ConnectedClients() int
}

type Dispatcher struct {
	store   *store.Store
	player  Playback
	feeds   FeedLoader
	clients ClientCounter
	logger  *slog.Logger
}

func NewDispatcher(st *store.Store, player Playback, feeds FeedLoader, clients ClientCounter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   st,
		player:  player,
		feeds:   feeds,
		clients: clients,
		logger:  logger,
	}
}

// Dispatch handles one raw request line from peer and always produces an
// envelope; no failure below this point escapes as anything else.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, peer string) Envelope {
	startedAt := time.Now()

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		d.logCall("parse", peer, startedAt, false)
		return fail("JSON parsing error", err.Error())
	}
	if strings.TrimSpace(req.Action) == "" {
		d.logCall("parse", peer, startedAt, false)
		return fail("Missing 'action' field", "")
	}

	var resp Envelope
	switch req.Action {
	case "add_podcast":
		resp = d.handleAddPodcast(req)
	case "remove_podcast":
		resp = d.handleRemovePodcast(req)
	case "list_podcasts":
		resp = d.handleListPodcasts()
	case "play_podcast":
		resp = d.handlePlayPodcast(ctx, req)
	case "player_control":
		resp = d.handlePlayerControl(req)
	case "get_status":
		resp = d.handleGetStatus()
	case "navigate_podcasts":
		resp = d.handleNavigatePodcasts(req)
	default:
		resp = fail("Unknown action: "+req.Action, "")
	}

	d.logCall(req.Action, peer, startedAt, resp.Success)
	return resp
}

func (d *Dispatcher) handleAddPodcast(req request) Envelope {
	if req.Name == "" || req.URL == "" {
		return fail("Missing 'name' or 'url' field", "")
	}

	if _, err := d.store.Add(req.Name, req.URL, req.Description); err != nil {
		return failFromError(err)
	}

	return ok(map[string]any{
		"message": "Podcast added successfully",
		"name":    req.Name,
		"url":     req.URL,
	})
}

func (d *Dispatcher) handleRemovePodcast(req request) Envelope {
	if req.Identifier == "" {
		return fail("Missing 'identifier' field", "")
	}

	if _, err := d.store.Remove(req.Identifier); err != nil {
		return failFromError(err)
	}

	return ok(map[string]any{
		"message":    "Podcast removed successfully",
		"identifier": req.Identifier,
	})
}

func (d *Dispatcher) handleListPodcasts() Envelope {
	subs, currentIndex := d.store.Snapshot()

	podcasts := make([]map[string]any, 0, len(subs))
	for i, sub := range subs {
		podcasts = append(podcasts, map[string]any{
			"index":       i,
			"name":        sub.Name,
			"url":         sub.FeedURL,
			"description": sub.Description,
			"enabled":     sub.Enabled,
			"is_current":  len(subs) > 0 && i == currentIndex,
		})
	}

	return ok(map[string]any{
		"podcasts":      podcasts,
		"current_index": currentIndex,
	})
}

func (d *Dispatcher) handlePlayPodcast(ctx context.Context, req request) Envelope {
	if req.URL != "" {
		if err := d.player.Play(ctx, req.URL); err != nil {
			return failFromError(err)
		}
		return ok(map[string]any{
			"message": "Playing from URL",
			"url":     req.URL,
		})
	}

	sub, found := d.store.Current()
	if !found {
		return fail("No podcast selected", "")
	}

	episodes, err := d.feeds.LoadEpisodes(ctx, sub.FeedURL)
	if err != nil {
		return fail("Could not load episodes", err.Error())
	}
	if len(episodes) == 0 {
		return fail("Could not load episodes", "feed has no episodes")
	}

	latest := episodes[0]
	if err := d.player.Play(ctx, latest.URL); err != nil {
		return failFromError(err)
	}

	return ok(map[string]any{
		"message": "Playing podcast episode",
		"podcast": sub.Name,
		"episode": latest.Title,
		"url":     latest.URL,
	})
}

func (d *Dispatcher) handlePlayerControl(req request) Envelope {
	switch req.Command {
	case "":
		return fail("Missing 'command' field", "")
	case "pause":
		if err := d.player.Pause(); err != nil {
			return failFromError(err)
		}
		return ok(map[string]any{"message": "Playback paused"})
	case "stop":
		if err := d.player.Stop(); err != nil {
			return failFromError(err)
		}
		return ok(map[string]any{"message": "Playback stopped"})
	default:
		return fail("Unknown player command: "+req.Command, "")
	}
}

func (d *Dispatcher) handleGetStatus() Envelope {
	subs, currentIndex := d.store.Snapshot()

	data := map[string]any{
		"player": map[string]any{
			"playing": d.player.IsPlaying(),
		},
		"subscription_count": len(subs),
		"current_index":      currentIndex,
	}

	if len(subs) > 0 {
		sub := subs[currentIndex]
		data["current_podcast"] = map[string]any{
			"name":        sub.Name,
			"url":         sub.FeedURL,
			"description": sub.Description,
		}
	} else {
		data["current_podcast"] = nil
	}

	connected := 0
	if d.clients != nil {
		connected = d.clients.ConnectedClients()
	}
	data["connected_clients"] = connected

	return ok(data)
}

func (d *Dispatcher) handleNavigatePodcasts(req request) Envelope {
	var (
		sub   domain.Subscription
		found bool
	)

	switch req.Direction {
	case "":
		return fail("Missing 'direction' field", "")
	case "next":
		sub, found = d.store.Next()
	case "previous":
		sub, found = d.store.Previous()
	default:
		return fail("Invalid direction: "+req.Direction, "")
	}

	if !found {
		return fail("No podcasts available", "")
	}

	return ok(map[string]any{
		"message": fmt.Sprintf("Selected %s podcast", req.Direction),
		"podcast": map[string]any{
			"name":        sub.Name,
			"url":         sub.FeedURL,
			"description": sub.Description,
		},
		"index": d.store.CurrentIndex(),
	})
}

// failFromError is the single point where internal errors become wire
// envelopes. CommandError carries its own message; anything else is reported
// as an internal failure with the error text as details.
func failFromError(err error) Envelope {
	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) && cmdErr != nil {
		return fail(cmdErr.Message, cmdErr.Details)
	}
	return fail("Internal error", err.Error())
}

func (d *Dispatcher) logCall(action, peer string, startedAt time.Time, success bool) {
	if d == nil || d.logger == nil {
		return
	}
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}

	d.logger.Log(
		context.Background(),
		level,
		"command_call",
		slog.String("action", action),
		slog.String("peer", peer),
		slog.Int64("duration_ms", time.Since(startedAt).Milliseconds()),
		slog.Bool("success", success),
	)
}
