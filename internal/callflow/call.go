package callflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/lifecycle"
	"github.com/troikatech/collections-agent/internal/media"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/speech"
	"github.com/troikatech/collections-agent/internal/transcript"
	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/metrics"
)

const (
	tickInterval    = 100 * time.Millisecond
	inboundBuffer   = 64
	speechQueueSize = 16
	bargeInFrames   = 10
	transferTimeout = 10 * time.Second
)

// Policy is the turn policy behind the chat flow
type Policy interface {
	Go(ctx context.Context, utterance string) <-chan dialogue.Result
	SetLanguage(lang language.Code)
}

// Resolver finds the customer for a stream
type Resolver interface {
	Resolve(ctx context.Context, l session.Lookup) (*session.CallParticipant, session.Source, error)
}

// Transcriber turns one utterance into text
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, lang string) (speech.Transcript, error)
	MinBytes() int
}

// Synthesizer turns text into PCM at the stream rate
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// Transferer bridges a customer to a human agent
type Transferer interface {
	TransferToAgent(ctx context.Context, customer, agent string) error
}

// Reporter receives lifecycle transitions
type Reporter interface {
	Report(t lifecycle.Transition)
}

// Deps are the collaborators shared across calls
type Deps struct {
	Resolver    Resolver
	Transcriber Transcriber
	Synthesizer Synthesizer
	NewPolicy   func(p *session.CallParticipant, lang language.Code) Policy
	Identifier  *language.Identifier
	Transcripts *transcript.Log
	Reporter    Reporter
	Transferer  Transferer
	Registry    *session.Registry
	Logger      *zap.Logger
}

// Options tune one call
type Options struct {
	Machine        Config
	SampleRate     int
	NoInputTimeout time.Duration
	Watchdog       time.Duration
	VADThreshold   float64
	BargeIn        bool
	AgentNumber    string
	FrameInterval  time.Duration
	KeepAlive      time.Duration
	ResolveTimeout time.Duration
	// Lookup carries identifiers from the websocket URL; the start event fills the rest
	Lookup session.Lookup
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.NoInputTimeout <= 0 {
		o.NoInputTimeout = 8 * time.Second
	}
	if o.Watchdog <= 0 {
		o.Watchdog = 600 * time.Second
	}
	if o.VADThreshold <= 0 {
		o.VADThreshold = 500
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = 5 * time.Second
	}
	return o
}

type utterance struct {
	text string
	lang language.Code
	mark string
	gen  uint64
}

type heardResult struct {
	tr  speech.Transcript
	err error
}

type spokenResult struct {
	gen uint64
	pb  media.Playback
	err error
}

// Call runs one media stream. Everything except the speaker and the
// remote calls happens on the loop goroutine, which owns the machine,
// the utterance buffer and the timers.
type Call struct {
	conn *media.Conn
	deps Deps
	opts Options
	log  *zap.Logger

	machine  *Machine
	buf      *media.Buffer
	vad      *media.VAD
	streamer *media.Streamer
	mulaw    bool
	policy   Policy
	recorder *transcript.Recorder
	sess     *session.CallSession

	results chan interface{}
	speechQ chan utterance
	workers sync.WaitGroup
	cancel  context.CancelFunc

	speechMu     sync.Mutex
	speechGen    uint64
	speechCancel context.CancelFunc

	started       bool
	active        bool
	registered    bool
	done          bool
	speaking      int
	marks         int
	sttBusy       bool
	inSpeech      bool
	voicedLen     int
	bargeFrames   int
	lastVoice     time.Time
	listenSince   time.Time
	hangupPending bool
	hangupGrace   time.Duration
	hangupTimer   *time.Timer
	watchdog      *time.Timer
}

// NewCall prepares a call on an accepted media connection
func NewCall(conn *media.Conn, deps Deps, opts Options) *Call {
	opts = opts.withDefaults()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Call{
		conn:    conn,
		deps:    deps,
		opts:    opts,
		log:     deps.Logger,
		machine: NewMachine(opts.Machine, deps.Identifier),
		buf:     media.NewBuffer(opts.SampleRate, media.DefaultMaxUtterance),
		vad:     media.NewVAD(opts.VADThreshold),
		results: make(chan interface{}, 8),
		speechQ: make(chan utterance, speechQueueSize),
	}
}

// Machine exposes the call's state machine for inspection
func (c *Call) Machine() *Machine { return c.machine }

// Session returns the call session once the stream has started
func (c *Call) Session() *session.CallSession { return c.sess }

// Run serves the stream until the caller hangs up, the call ends or ctx
// is cancelled. The connection is closed on return.
func (c *Call) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	inbound := make(chan *media.Inbound, inboundBuffer)

	log := c.log
	g.Go(func() error { return c.read(gctx, inbound, log) })
	g.Go(func() error {
		<-gctx.Done()
		_ = c.conn.Close()
		return nil
	})
	g.Go(func() error { return c.speak(gctx) })
	if c.opts.KeepAlive > 0 {
		g.Go(func() error {
			c.conn.KeepAlive(gctx, c.opts.KeepAlive)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return c.loop(gctx, inbound)
	})

	err := g.Wait()
	c.finish()
	return err
}

func (c *Call) read(ctx context.Context, out chan<- *media.Inbound, log *zap.Logger) error {
	defer close(out)
	for {
		ev, err := c.conn.ReadEvent()
		if err != nil {
			if media.IsProtocolError(err) {
				log.Warn("Skipping media message", zap.Error(err))
				continue
			}
			if ctx.Err() == nil {
				log.Info("Media socket closed", zap.Error(err))
			}
			return nil
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Call) loop(ctx context.Context, inbound <-chan *media.Inbound) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for !c.done {
		select {
		case <-ctx.Done():
			c.handle(ctx, Stopped{})
			return nil
		case ev, ok := <-inbound:
			if !ok {
				c.handle(ctx, Stopped{})
				return nil
			}
			c.onInbound(ctx, ev)
		case r := <-c.results:
			c.onResult(ctx, r)
		case now := <-ticker.C:
			c.tick(ctx, now)
		case <-timerC(c.watchdog):
			c.log.Warn("Call watchdog fired", zap.Duration("limit", c.opts.Watchdog))
			c.handle(ctx, WatchdogFired{})
		case <-timerC(c.hangupTimer):
			c.log.Info("Closing stream after final utterance")
			return nil
		}
	}
	return nil
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (c *Call) onInbound(ctx context.Context, ev *media.Inbound) {
	switch ev.Event {
	case media.EventConnected:
		c.log.Debug("Media stream connected")
	case media.EventStart:
		c.onStart(ctx, ev)
	case media.EventMedia:
		c.onMedia(ctx, ev, time.Now())
	case media.EventStop:
		c.log.Info("Media stream stopped by carrier")
		c.handle(ctx, Stopped{})
		c.done = true
	case media.EventMark:
		c.log.Debug("Playback mark acknowledged", zap.String("mark", ev.Mark))
	case media.EventDTMF:
		c.log.Info("DTMF received", zap.String("digit", ev.Digit))
	case media.EventClear:
		c.log.Debug("Carrier cleared playback")
	}
}

func (c *Call) onStart(ctx context.Context, ev *media.Inbound) {
	if c.started {
		c.log.Warn("Duplicate start event ignored")
		return
	}
	c.started = true

	st := ev.Start
	if st == nil {
		st = &media.Start{}
	}
	sid := st.StreamSID
	if sid == "" {
		sid = ev.StreamSID
	}
	c.conn.SetStreamSID(sid)

	c.mulaw = isMuLaw(st.Encoding)
	if st.SampleRate > 0 && st.SampleRate != c.opts.SampleRate {
		c.log.Warn("Stream sample rate differs from configured rate",
			zap.Int("stream_rate", st.SampleRate),
			zap.Int("configured_rate", c.opts.SampleRate),
		)
	}
	var sopts []media.StreamerOption
	if c.opts.FrameInterval > 0 {
		sopts = append(sopts, media.WithPacing(c.opts.FrameInterval, 0))
	}
	if c.mulaw {
		sopts = append(sopts, media.WithFrameSize(audio.FrameBytes(c.opts.SampleRate)/2))
	}
	c.streamer = media.NewStreamer(c.conn, c.opts.SampleRate, c.log, sopts...)

	lookup := mergeLookup(c.opts.Lookup, st)
	c.log = c.log.With(logger.CallFields(lookup.OfficialID, sid, lookup.Phone)...)
	c.log.Info("Media stream started",
		zap.String("encoding", st.Encoding),
		zap.Int("custom_parameters", len(st.CustomParameters)),
	)

	rctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	p, src, err := c.deps.Resolver.Resolve(rctx, lookup)
	cancel()

	now := time.Now()
	c.sess = session.New(lookup, sid, p, c.machine.Language(), now)
	if err != nil {
		c.log.Error("Customer resolution failed", zap.Error(err))
		c.handle(ctx, ResolveFailed{Err: err})
		return
	}
	c.log.Info("Customer resolved", zap.String("source", string(src)), zap.String("loan_suffix", p.LoanSuffix()))

	var flow Flow
	if raw := st.CustomParameters["flow"]; raw != "" {
		if f, err := ParseFlow(raw); err == nil {
			flow = f
		} else {
			c.log.Warn("Ignoring unknown flow parameter", zap.String("flow", raw))
		}
	}

	if c.deps.Transcripts != nil {
		c.recorder = c.deps.Transcripts.Recorder(c.sess.CallID())
	}
	if c.deps.Registry != nil {
		c.deps.Registry.Add(session.Entry{
			CallID:    c.sess.CallID(),
			StreamSID: sid,
			Name:      p.Name,
			StartedAt: now,
		}, c.cancel)
		c.registered = true
	}
	c.watchdog = time.NewTimer(c.opts.Watchdog)
	metrics.Default.CallsActive.Inc()
	c.active = true

	c.handle(ctx, Started{Participant: p, Flow: flow})
	c.sess.Flow = string(c.machine.Flow())
	metrics.Default.CallsStarted.WithLabelValues(c.sess.Flow).Inc()
	c.listenSince = now
}

func mergeLookup(l session.Lookup, st *media.Start) session.Lookup {
	params := st.CustomParameters
	if l.OfficialID == "" {
		l.OfficialID = st.CallSID
	}
	if l.TransientID == "" {
		l.TransientID = first(params, "transient_id", "transientId", "call_id")
	}
	if l.Phone == "" {
		l.Phone = first(params, "phone", "customer_phone")
	}
	if l.Phone == "" {
		l.Phone = st.From
	}
	if len(params) > 0 {
		l.Metadata = params
	}
	return l
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func isMuLaw(encoding string) bool {
	e := strings.ToLower(encoding)
	return strings.Contains(e, "mulaw") || strings.Contains(e, "ulaw") || strings.Contains(e, "pcmu")
}

func (c *Call) onMedia(ctx context.Context, ev *media.Inbound, now time.Time) {
	if c.sess == nil || ev.Media == nil || c.machine.State() == AwaitStart {
		return
	}
	frame, err := audio.DecodeFrame(ev.Media.Payload)
	if err != nil || len(frame) == 0 {
		c.log.Debug("Dropping undecodable media frame", zap.Error(err))
		return
	}
	if c.mulaw {
		frame = audio.DecodeMuLaw(frame)
	}
	voiced := c.vad.IsSpeech(frame)

	if c.speaking > 0 && !c.bargeIn(voiced) {
		return
	}
	if !c.machine.Listening() || c.sttBusy {
		return
	}

	if voiced {
		if !c.inSpeech {
			c.log.Debug("Caller started speaking")
		}
		c.inSpeech = true
		c.lastVoice = now
	}
	if c.inSpeech {
		full := c.buf.Append(frame)
		if voiced {
			c.voicedLen = c.buf.Len()
		}
		if full {
			c.log.Info("Utterance buffer full, transcribing")
			c.endUtterance(ctx)
			return
		}
	}
	c.checkGap(ctx, now)
}

// bargeIn reports whether sustained caller speech interrupted playback
func (c *Call) bargeIn(voiced bool) bool {
	if !c.opts.BargeIn || c.machine.State() != ClaudeChat || !voiced {
		c.bargeFrames = 0
		return false
	}
	c.bargeFrames++
	if c.bargeFrames < bargeInFrames {
		return false
	}
	c.bargeFrames = 0
	c.log.Info("Caller barged in, stopping playback")
	c.cancelSpeech()
	if err := c.conn.SendClear(); err != nil {
		c.log.Warn("Failed to send clear", zap.Error(err))
	}
	return true
}

func (c *Call) checkGap(ctx context.Context, now time.Time) {
	if c.inSpeech && now.Sub(c.lastVoice) >= c.machine.SilenceGap() {
		c.endUtterance(ctx)
	}
}

// endUtterance hands the buffered speech to STT, trimmed to the last
// voiced frame. Utterances shorter than the transcriber minimum are
// dropped here and never reach the remote service.
func (c *Call) endUtterance(ctx context.Context) {
	buffered := c.buf.Duration()
	pcm := c.buf.Take()
	if c.voicedLen < len(pcm) {
		pcm = pcm[:c.voicedLen]
	}
	c.inSpeech = false
	c.voicedLen = 0
	c.vad.Reset()
	if c.recorder != nil {
		_ = c.recorder.Flush()
	}

	if len(pcm) < c.deps.Transcriber.MinBytes() {
		c.log.Debug("Discarding short utterance", zap.Int("bytes", len(pcm)), zap.Duration("buffered", buffered))
		return
	}
	c.log.Debug("Utterance ended", zap.Duration("buffered", buffered))

	var lang string
	if c.machine.LanguageLocked() {
		lang = string(c.machine.Language())
	}
	c.sttBusy = true
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		tr, err := c.deps.Transcriber.Transcribe(ctx, pcm, lang)
		c.deliver(ctx, heardResult{tr: tr, err: err})
	}()
}

func (c *Call) tick(ctx context.Context, now time.Time) {
	if c.sess == nil {
		return
	}
	c.checkGap(ctx, now)
	if c.idle() && now.Sub(c.listenSince) >= c.opts.NoInputTimeout {
		c.log.Info("No input from caller", zap.Duration("waited", now.Sub(c.listenSince)))
		c.listenSince = now
		c.handle(ctx, NoInput{})
	}
}

func (c *Call) idle() bool {
	return c.machine.Listening() && !c.sttBusy && !c.inSpeech && c.speaking == 0 && !c.hangupPending
}

func (c *Call) onResult(ctx context.Context, r interface{}) {
	switch r := r.(type) {
	case heardResult:
		c.sttBusy = false
		c.listenSince = time.Now()
		if r.err != nil {
			c.log.Warn("Transcription failed", zap.Error(r.err))
		} else if !r.tr.Empty() {
			c.log.Info("Caller said", zap.String("text", r.tr.Text))
			c.record(transcript.SpeakerCustomer, r.tr.Text)
		}
		c.handle(ctx, Heard{Text: r.tr.Text, Err: r.err})
	case dialogue.Result:
		if r.Err != nil {
			c.log.Warn("Dialogue policy failed", zap.Error(r.Err))
		}
		c.handle(ctx, Replied{Reply: r.Reply, Err: r.Err})
	case spokenResult:
		if r.gen != c.currentGen() {
			return
		}
		c.speaking--
		if c.speaking <= 0 {
			c.speaking = 0
			c.listenSince = time.Now()
			c.armHangup()
		}
		if r.err != nil && !errors.Is(r.err, context.Canceled) {
			c.log.Warn("Speech synthesis failed", zap.Error(r.err))
			c.handle(ctx, SpeechFailed{Err: r.err})
		}
	}
}

// handle feeds ev to the machine and executes the resulting effects
func (c *Call) handle(ctx context.Context, ev Event) {
	prev := c.machine.State()
	effects := c.machine.Handle(ev)
	if next := c.machine.State(); next != prev {
		metrics.Default.StateTransitions.WithLabelValues(string(next)).Inc()
		c.log.Info("Call state changed", zap.String("from", string(prev)), zap.String("to", string(next)))
	}

	for _, eff := range effects {
		switch e := eff.(type) {
		case Say:
			c.say(e)
		case StartPolicy:
			c.policy = c.deps.NewPolicy(c.machine.Participant(), e.Lang)
		case AskPolicy:
			c.ask(ctx, e)
		case Transfer:
			c.transfer()
		case Fail:
			if err := c.conn.SendError(e.Message); err != nil {
				c.log.Warn("Failed to send error event", zap.Error(err))
			}
			c.done = true
		case Hangup:
			c.hangupPending = true
			c.hangupGrace = e.Grace
			c.armHangup()
		case CancelSpeech:
			c.cancelSpeech()
		case Report:
			c.report(e)
		}
	}

	if c.sess != nil {
		c.sess.Stage = string(c.machine.State())
		c.sess.DetectedLanguage = c.machine.Language()
		c.sess.LanguageLocked = c.machine.LanguageLocked()
		c.sess.RefusalCount = c.machine.Refusals()
		c.sess.TurnCount = c.machine.Turns()
	}
}

func (c *Call) say(s Say) {
	c.record(transcript.SpeakerAgent, s.Text)
	c.marks++
	u := utterance{text: s.Text, lang: s.Lang, mark: fmt.Sprintf("utt-%d", c.marks), gen: c.currentGen()}
	select {
	case c.speechQ <- u:
		c.speaking++
	default:
		c.log.Warn("Speech queue full, dropping utterance", zap.String("mark", u.mark))
	}
}

func (c *Call) ask(ctx context.Context, a AskPolicy) {
	if c.policy == nil {
		c.policy = c.deps.NewPolicy(c.machine.Participant(), a.Lang)
	}
	c.policy.SetLanguage(a.Lang)
	ch := c.policy.Go(ctx, a.Utterance)
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		select {
		case r := <-ch:
			c.deliver(ctx, r)
		case <-ctx.Done():
		}
	}()
}

// transfer bridges the caller to the agent line. The machine emits it at
// most once; the request outlives the stream.
func (c *Call) transfer() {
	if c.deps.Transferer == nil || c.opts.AgentNumber == "" {
		c.log.Warn("Transfer requested but no agent line is configured")
		return
	}
	customer := c.sess.Participant.Phone
	if customer == "" {
		customer = c.opts.Lookup.Phone
	}
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
		defer cancel()
		if err := c.deps.Transferer.TransferToAgent(ctx, customer, c.opts.AgentNumber); err != nil {
			c.log.Error("Agent transfer failed", zap.Error(err))
			return
		}
		c.log.Info("Agent transfer requested", logger.MaskPhone("agent", c.opts.AgentNumber))
	}()
}

func (c *Call) report(r Report) {
	if c.sess == nil {
		return
	}
	if r.Final {
		metrics.Default.CallOutcomes.WithLabelValues(r.Status).Inc()
		c.record(transcript.SpeakerSystem, "outcome "+r.Status)
	}
	if c.deps.Reporter == nil {
		return
	}
	c.deps.Reporter.Report(lifecycle.Transition{
		CallID:  c.sess.CallID(),
		Status:  r.Status,
		Message: r.Message,
		Stage:   string(c.machine.State()),
		Final:   r.Final,
		At:      time.Now(),
	})
}

func (c *Call) record(speaker, text string) {
	if c.recorder != nil {
		c.recorder.Append(speaker, text)
	}
}

func (c *Call) armHangup() {
	if c.hangupPending && c.speaking == 0 && c.hangupTimer == nil {
		c.hangupTimer = time.NewTimer(c.hangupGrace)
	}
}

func (c *Call) deliver(ctx context.Context, r interface{}) {
	select {
	case c.results <- r:
	case <-ctx.Done():
	}
}

// speak plays queued utterances one at a time. Utterances queued before
// the last cancelSpeech are skipped.
func (c *Call) speak(ctx context.Context) error {
	for {
		var u utterance
		select {
		case <-ctx.Done():
			return nil
		case u = <-c.speechQ:
		}

		sctx, cancel := context.WithCancel(ctx)
		if !c.beginSpeech(u.gen, cancel) {
			cancel()
			c.deliver(ctx, spokenResult{gen: u.gen})
			continue
		}
		res := c.play(sctx, u)
		c.endSpeech()
		cancel()
		c.deliver(ctx, res)
	}
}

func (c *Call) play(ctx context.Context, u utterance) spokenResult {
	if c.conn.Closed() {
		return spokenResult{gen: u.gen, pb: media.Playback{Truncated: true}}
	}
	pcm, err := c.deps.Synthesizer.Synthesize(ctx, u.text, string(u.lang))
	if err != nil {
		return spokenResult{gen: u.gen, err: err}
	}
	if ctx.Err() != nil {
		return spokenResult{gen: u.gen, pb: media.Playback{Truncated: true}}
	}
	if c.mulaw {
		pcm = audio.EncodeMuLaw(pcm)
	}
	return spokenResult{gen: u.gen, pb: c.streamer.Stream(ctx, pcm, u.mark)}
}

func (c *Call) beginSpeech(gen uint64, cancel context.CancelFunc) bool {
	c.speechMu.Lock()
	defer c.speechMu.Unlock()
	if gen != c.speechGen {
		return false
	}
	c.speechCancel = cancel
	return true
}

func (c *Call) endSpeech() {
	c.speechMu.Lock()
	c.speechCancel = nil
	c.speechMu.Unlock()
}

// cancelSpeech aborts the current playback and invalidates the queue
func (c *Call) cancelSpeech() {
	c.speechMu.Lock()
	c.speechGen++
	if c.speechCancel != nil {
		c.speechCancel()
	}
	c.speechMu.Unlock()
	c.speaking = 0
	c.bargeFrames = 0
}

func (c *Call) currentGen() uint64 {
	c.speechMu.Lock()
	defer c.speechMu.Unlock()
	return c.speechGen
}

func (c *Call) finish() {
	c.workers.Wait()
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	if c.hangupTimer != nil {
		c.hangupTimer.Stop()
	}
	fields := []zap.Field{zap.String("state", string(c.machine.State()))}
	if c.recorder != nil {
		c.recorder.Close()
		fields = append(fields, zap.Int("transcript_lines", len(c.recorder.Entries())))
	}
	if c.registered {
		c.deps.Registry.Remove(c.sess.CallID())
	}
	if c.active {
		metrics.Default.CallsActive.Dec()
	}
	_ = c.conn.Close()
	c.log.Info("Call finished", fields...)
}
