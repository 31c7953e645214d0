package keywords

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/generalbots/botcore/internal/expr"
)

// llmTimeout/generationTimeout match spec.md §4.10's suspension-point
// table: text completion falls under the 60s default, image/audio/
// video generation and captioning are heavier calls bucketed with the
// 120s SOAP/PDF budget.
const (
	llmTimeout        = 60 * time.Second
	generationTimeout = 120 * time.Second
)

// disabledPlaceholder is what LLM/IMAGE/VIDEO/AUDIO/SEE return when
// their Provider is nil, i.e. the bot has no llm-* config rows set
// (spec.md §4.4: "when the provider is disabled they return a short
// placeholder marker rather than failing").
const disabledPlaceholder = "[llm feature disabled]"

// LLMProvider is the narrow dispatch surface the LLM-adjacent verb
// group depends on; internal/llmclient.Provider satisfies it
// structurally.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	GenerateAudio(ctx context.Context, text string) ([]byte, error)
	Caption(ctx context.Context, data []byte, mimeType string) (string, error)
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// RegisterLLM wires LLM/IMAGE/VIDEO/AUDIO/SEE for one session's
// evaluation (spec.md §4.4's LLM-adjacent group). provider may be nil,
// meaning the feature is gated off for this bot; files is used only by
// SEE to load the path it captions and may also be nil, in which case
// SEE rejects drive-backed paths but still accepts raw data URIs.
func RegisterLLM(e *expr.Engine, sc SessionContext, provider LLMProvider, files FileStore) error {
	l := &llmVerbs{provider: provider, files: files, botID: sc.BotID}
	verbs := map[string]expr.Handler{
		"LLM":   l.llm,
		"IMAGE": l.image,
		"VIDEO": l.video,
		"AUDIO": l.audio,
		"SEE":   l.see,
	}
	for name, handler := range verbs {
		if err := e.RegisterSyntax(name, true, handler); err != nil {
			return Wrap(KindInternal, "registering "+name, err)
		}
	}
	return nil
}

type llmVerbs struct {
	provider LLMProvider
	files    FileStore
	botID    string
}

func (l *llmVerbs) llm(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "LLM requires (prompt)")
	}
	if l.provider == nil {
		return disabledPlaceholder, nil
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), llmTimeout)
	defer cancel()
	out, err := l.provider.Complete(ctx, toString(args[0]))
	if err != nil {
		return nil, Wrap(KindUpstream, "LLM: completion failed", err)
	}
	return out, nil
}

func (l *llmVerbs) image(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "IMAGE requires (prompt)")
	}
	if l.provider == nil {
		return disabledPlaceholder, nil
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), generationTimeout)
	defer cancel()
	out, err := l.provider.GenerateImage(ctx, toString(args[0]))
	if err != nil {
		return nil, Wrap(KindUpstream, "IMAGE: generation failed", err)
	}
	return out, nil
}

// video has no generation dependency anywhere in the example pack
// (neither SDK teacher depends on exposes one), so it always returns
// the disabled placeholder, matching spec.md's "disabled" branch
// unconditionally rather than dispatching to a provider that doesn't
// exist.
func (l *llmVerbs) video(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "VIDEO requires (prompt)")
	}
	return disabledPlaceholder, nil
}

func (l *llmVerbs) audio(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "AUDIO requires (text)")
	}
	if l.provider == nil {
		return disabledPlaceholder, nil
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), generationTimeout)
	defer cancel()
	data, err := l.provider.GenerateAudio(ctx, toString(args[0]))
	if err != nil {
		return nil, Wrap(KindUpstream, "AUDIO: synthesis failed", err)
	}
	return string(data), nil
}

// see dispatches to image or video captioning by the path's extension
// (spec.md §4.4). Video paths have no captioning dependency in the
// pack either, so they share video's disabled placeholder; image paths
// are loaded from the drive namespace and captioned via the provider.
func (l *llmVerbs) see(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "SEE requires (path)")
	}
	p := toString(args[0])
	if videoExtensions[strings.ToLower(path.Ext(p))] {
		return disabledPlaceholder, nil
	}
	if l.provider == nil {
		return disabledPlaceholder, nil
	}
	if l.files == nil {
		return nil, NewError(KindInvalidArgument, "SEE: no file store configured")
	}
	if err := validateDrivePath(p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	data, err := l.files.Get(ctx, l.botID, p)
	cancel()
	if err != nil {
		return nil, Wrap(KindUpstream, "SEE: read "+p, err)
	}
	ctx, cancel = context.WithTimeout(contextFrom(cc), generationTimeout)
	defer cancel()
	out, err := l.provider.Caption(ctx, data, mimeTypeFor(p))
	if err != nil {
		return nil, Wrap(KindUpstream, "SEE: caption failed", err)
	}
	return out, nil
}

func mimeTypeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
