package control

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"podradio/internal/domain"
	"podradio/internal/store"
)

type fakePlayback struct {
	playing   bool
	playedURL string
	playErr   error
	pauseErr  error
	pauses    int
	stops     int
}

func (f *fakePlayback) Play(ctx context.Context, mediaURL string) error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	f.playedURL = mediaURL
	return nil
}

func (f *fakePlayback) Pause() error {
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pauses++
	f.playing = false
	return nil
}

func (f *fakePlayback) Stop() error {
	f.stops++
	f.playing = false
	return nil
}

func (f *fakePlayback) IsPlaying() bool { return f.playing }

type fakeFeeds struct {
	episodes []domain.Episode
	err      error
	lastURL  string
}

func (f *fakeFeeds) LoadEpisodes(ctx context.Context, feedURL string) ([]domain.Episode, error) {
	f.lastURL = feedURL
	return f.episodes, f.err
}

type fakeCounter struct{ clients int }

func (f fakeCounter) ConnectedClients() int { return f.clients }

type fixture struct {
	dispatcher *Dispatcher
	store      *store.Store
	playback   *fakePlayback
	feeds      *fakeFeeds
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	playback := &fakePlayback{}
	feeds := &fakeFeeds{}
	return &fixture{
		dispatcher: NewDispatcher(st, playback, feeds, fakeCounter{clients: 2}, nil),
		store:      st,
		playback:   playback,
		feeds:      feeds,
	}
}

func (f *fixture) dispatch(t *testing.T, payload string) Envelope {
	t.Helper()
	return f.dispatcher.Dispatch(context.Background(), []byte(payload), "client:1")
}

func TestDispatchMalformedJSON(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, "{not json")

	if resp.Success {
		t.Fatal("expected failure for malformed JSON")
	}
	if resp.Error != "JSON parsing error" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.Details == "" {
		t.Error("expected parse details")
	}
}

func TestDispatchMissingAction(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"name":"Show"}`)

	if resp.Success || resp.Error != "Missing 'action' field" {
		t.Errorf("got %+v", resp)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"launch_missiles"}`)

	if resp.Success || resp.Error != "Unknown action: launch_missiles" {
		t.Errorf("got %+v", resp)
	}
}

func TestAddPodcast(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml","description":"a show"}`)

	if !resp.Success {
		t.Fatalf("add failed: %+v", resp)
	}
	if resp.Data["message"] != "Podcast added successfully" {
		t.Errorf("message = %v", resp.Data["message"])
	}
	if f.store.Count() != 1 {
		t.Errorf("store count = %d, want 1", f.store.Count())
	}
}

func TestAddPodcastValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "missing name",
			payload: `{"action":"add_podcast","url":"https://a.example/feed.xml"}`,
			wantErr: "Missing 'name' or 'url' field",
		},
		{
			name:    "missing url",
			payload: `{"action":"add_podcast","name":"Show A"}`,
			wantErr: "Missing 'name' or 'url' field",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.dispatch(t, tc.payload)
			if resp.Success || resp.Error != tc.wantErr {
				t.Errorf("got %+v, want error %q", resp, tc.wantErr)
			}
		})
	}
}

func TestAddPodcastDuplicate(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)
	resp := f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://other.example/feed.xml"}`)

	if resp.Success {
		t.Fatal("duplicate add must fail")
	}
	if resp.Error != "Podcast with this name or URL already exists" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestRemovePodcast(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)
	resp := f.dispatch(t, `{"action":"remove_podcast","identifier":"Show A"}`)

	if !resp.Success {
		t.Fatalf("remove failed: %+v", resp)
	}
	if resp.Data["message"] != "Podcast removed successfully" {
		t.Errorf("message = %v", resp.Data["message"])
	}
	if f.store.Count() != 0 {
		t.Errorf("store count = %d, want 0", f.store.Count())
	}
}

func TestRemovePodcastErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, `{"action":"remove_podcast"}`)
	if resp.Success || resp.Error != "Missing 'identifier' field" {
		t.Errorf("got %+v", resp)
	}

	resp = f.dispatch(t, `{"action":"remove_podcast","identifier":"nope"}`)
	if resp.Success || resp.Error != "Failed to remove podcast: not found" {
		t.Errorf("got %+v", resp)
	}
}

func TestListPodcasts(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)
	f.dispatch(t, `{"action":"add_podcast","name":"Show B","url":"https://b.example/feed.xml"}`)
	f.dispatch(t, `{"action":"navigate_podcasts","direction":"next"}`)

	resp := f.dispatch(t, `{"action":"list_podcasts"}`)
	if !resp.Success {
		t.Fatalf("list failed: %+v", resp)
	}

	podcasts, ok := resp.Data["podcasts"].([]map[string]any)
	if !ok {
		t.Fatalf("podcasts has type %T", resp.Data["podcasts"])
	}
	if len(podcasts) != 2 {
		t.Fatalf("got %d podcasts, want 2", len(podcasts))
	}
	if podcasts[0]["is_current"] != false || podcasts[1]["is_current"] != true {
		t.Errorf("is_current flags wrong: %v / %v", podcasts[0]["is_current"], podcasts[1]["is_current"])
	}
	if resp.Data["current_index"] != 1 {
		t.Errorf("current_index = %v, want 1", resp.Data["current_index"])
	}
}

func TestListPodcastsEmpty(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"list_podcasts"}`)

	if !resp.Success {
		t.Fatalf("empty list must succeed: %+v", resp)
	}
	podcasts := resp.Data["podcasts"].([]map[string]any)
	if len(podcasts) != 0 {
		t.Errorf("got %d podcasts, want 0", len(podcasts))
	}
}

func TestPlayPodcastDirectURL(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"play_podcast","url":"https://cdn.example/episode.mp3"}`)

	if !resp.Success {
		t.Fatalf("play failed: %+v", resp)
	}
	if resp.Data["message"] != "Playing from URL" {
		t.Errorf("message = %v", resp.Data["message"])
	}
	if f.playback.playedURL != "https://cdn.example/episode.mp3" {
		t.Errorf("played %q", f.playback.playedURL)
	}
}

func TestPlayPodcastLatestEpisode(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)
	f.feeds.episodes = []domain.Episode{
		{Title: "Latest", URL: "https://cdn.example/latest.mp3"},
		{Title: "Older", URL: "https://cdn.example/older.mp3"},
	}

	resp := f.dispatch(t, `{"action":"play_podcast"}`)
	if !resp.Success {
		t.Fatalf("play failed: %+v", resp)
	}
	if resp.Data["episode"] != "Latest" {
		t.Errorf("episode = %v", resp.Data["episode"])
	}
	if f.feeds.lastURL != "https://a.example/feed.xml" {
		t.Errorf("loaded feed %q", f.feeds.lastURL)
	}
	if f.playback.playedURL != "https://cdn.example/latest.mp3" {
		t.Errorf("played %q", f.playback.playedURL)
	}
}

func TestPlayPodcastNoSelection(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"play_podcast"}`)

	if resp.Success || resp.Error != "No podcast selected" {
		t.Errorf("got %+v", resp)
	}
}

func TestPlayPodcastFeedFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)

	f.feeds.err = errors.New("connection refused")
	resp := f.dispatch(t, `{"action":"play_podcast"}`)
	if resp.Success || resp.Error != "Could not load episodes" {
		t.Errorf("got %+v", resp)
	}

	f.feeds.err = nil
	f.feeds.episodes = nil
	resp = f.dispatch(t, `{"action":"play_podcast"}`)
	if resp.Success || resp.Error != "Could not load episodes" {
		t.Errorf("got %+v for empty feed", resp)
	}
}

func TestPlayPodcastPlayerFailure(t *testing.T) {
	f := newFixture(t)
	f.playback.playErr = domain.NewCommandError(domain.CodePlayerFailure, "Playback failed").WithDetails("no player binary")

	resp := f.dispatch(t, `{"action":"play_podcast","url":"https://cdn.example/episode.mp3"}`)
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error != "Playback failed" || resp.Details != "no player binary" {
		t.Errorf("got error %q details %q", resp.Error, resp.Details)
	}
}

func TestPlayerControl(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, `{"action":"player_control","command":"pause"}`)
	if !resp.Success || resp.Data["message"] != "Playback paused" {
		t.Errorf("pause: %+v", resp)
	}
	if f.playback.pauses != 1 {
		t.Errorf("pauses = %d, want 1", f.playback.pauses)
	}

	resp = f.dispatch(t, `{"action":"player_control","command":"stop"}`)
	if !resp.Success || resp.Data["message"] != "Playback stopped" {
		t.Errorf("stop: %+v", resp)
	}
	if f.playback.stops != 1 {
		t.Errorf("stops = %d, want 1", f.playback.stops)
	}

	resp = f.dispatch(t, `{"action":"player_control"}`)
	if resp.Success || resp.Error != "Missing 'command' field" {
		t.Errorf("missing command: %+v", resp)
	}

	resp = f.dispatch(t, `{"action":"player_control","command":"rewind"}`)
	if resp.Success || resp.Error != "Unknown player command: rewind" {
		t.Errorf("unknown command: %+v", resp)
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml","description":"a show"}`)
	f.playback.playing = true

	resp := f.dispatch(t, `{"action":"get_status"}`)
	if !resp.Success {
		t.Fatalf("status failed: %+v", resp)
	}

	player := resp.Data["player"].(map[string]any)
	if player["playing"] != true {
		t.Errorf("playing = %v", player["playing"])
	}
	if resp.Data["subscription_count"] != 1 {
		t.Errorf("subscription_count = %v", resp.Data["subscription_count"])
	}
	if resp.Data["connected_clients"] != 2 {
		t.Errorf("connected_clients = %v", resp.Data["connected_clients"])
	}
	current := resp.Data["current_podcast"].(map[string]any)
	if current["name"] != "Show A" {
		t.Errorf("current_podcast = %v", current)
	}
}

func TestGetStatusEmptyStore(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatch(t, `{"action":"get_status"}`)

	if !resp.Success {
		t.Fatalf("status failed: %+v", resp)
	}
	if resp.Data["current_podcast"] != nil {
		t.Errorf("current_podcast = %v, want nil", resp.Data["current_podcast"])
	}
}

func TestNavigatePodcasts(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, `{"action":"add_podcast","name":"Show A","url":"https://a.example/feed.xml"}`)
	f.dispatch(t, `{"action":"add_podcast","name":"Show B","url":"https://b.example/feed.xml"}`)

	resp := f.dispatch(t, `{"action":"navigate_podcasts","direction":"next"}`)
	if !resp.Success {
		t.Fatalf("navigate failed: %+v", resp)
	}
	if resp.Data["message"] != "Selected next podcast" {
		t.Errorf("message = %v", resp.Data["message"])
	}
	podcast := resp.Data["podcast"].(map[string]any)
	if podcast["name"] != "Show B" {
		t.Errorf("podcast = %v", podcast)
	}
	if resp.Data["index"] != 1 {
		t.Errorf("index = %v, want 1", resp.Data["index"])
	}

	resp = f.dispatch(t, `{"action":"navigate_podcasts","direction":"previous"}`)
	if !resp.Success || resp.Data["podcast"].(map[string]any)["name"] != "Show A" {
		t.Errorf("previous: %+v", resp)
	}
}

func TestNavigatePodcastsErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, `{"action":"navigate_podcasts"}`)
	if resp.Success || resp.Error != "Missing 'direction' field" {
		t.Errorf("missing direction: %+v", resp)
	}

	resp = f.dispatch(t, `{"action":"navigate_podcasts","direction":"sideways"}`)
	if resp.Success || resp.Error != "Invalid direction: sideways" {
		t.Errorf("invalid direction: %+v", resp)
	}

	resp = f.dispatch(t, `{"action":"navigate_podcasts","direction":"next"}`)
	if resp.Success || resp.Error != "No podcasts available" {
		t.Errorf("empty store: %+v", resp)
	}
}

// TestControlSessionFlow drives the full command sequence a remote would
// send: subscribe to two feeds, check the list, play the latest episode of
// the selected one, pause, switch podcasts, and clean up.
func TestControlSessionFlow(t *testing.T) {
	f := newFixture(t)
	f.feeds.episodes = []domain.Episode{{Title: "Ep 1", URL: "https://cdn.example/ep1.mp3"}}

	steps := []struct {
		payload     string
		wantSuccess bool
	}{
		{`{"action":"add_podcast","name":"Go Time","url":"https://gotime.example/rss"}`, true},
		{`{"action":"add_podcast","name":"History Hour","url":"https://history.example/rss"}`, true},
		{`{"action":"list_podcasts"}`, true},
		{`{"action":"play_podcast"}`, true},
		{`{"action":"player_control","command":"pause"}`, true},
		{`{"action":"navigate_podcasts","direction":"next"}`, true},
		{`{"action":"get_status"}`, true},
		{`{"action":"remove_podcast","identifier":"Go Time"}`, true},
		{`{"action":"get_status"}`, true},
	}

	for i, step := range steps {
		resp := f.dispatch(t, step.payload)
		if resp.Success != step.wantSuccess {
			t.Fatalf("step %d (%s): got %+v", i, step.payload, resp)
		}
	}

	if f.store.Count() != 1 {
		t.Errorf("store count = %d, want 1", f.store.Count())
	}
	current, _ := f.store.Current()
	if current.Name != "History Hour" {
		t.Errorf("current = %q, want History Hour", current.Name)
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	f := newFixture(t)

	success := f.dispatch(t, `{"action":"get_status"}`)
	encoded, err := json.Marshal(success)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(encoded), `"success":true`) {
		t.Errorf("success envelope = %s", encoded)
	}
	if strings.Contains(string(encoded), `"error"`) {
		t.Errorf("success envelope must omit error: %s", encoded)
	}

	failure := f.dispatch(t, `{"action":"bogus"}`)
	encoded, err = json.Marshal(failure)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(encoded), `"success":false`) {
		t.Errorf("failure envelope = %s", encoded)
	}
	if strings.Contains(string(encoded), `"data"`) {
		t.Errorf("failure envelope must omit data: %s", encoded)
	}
}
