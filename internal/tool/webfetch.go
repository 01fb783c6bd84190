package tool

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// webfetchLimiter throttles every webfetch call process-wide to 2 req/s
// with a burst of 4 (SPEC_FULL.md §B), independent of Policy & Guard's
// allow/deny decision.
var webfetchLimiter = rate.NewLimiter(rate.Limit(2), 4)

const webfetchMaxBytes = 2 << 20 // 2 MiB

// webfetchFactory implements `webfetch {url, format?}` (spec.md §4.2.1):
// format is "markdown" (default, via html-to-markdown over a
// goquery-cleaned DOM) or "text" (goquery-extracted visible text).
func webfetchFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Fetch a URL and return its content as markdown or text.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			rawURL, ok := stringArg(input, "url")
			if !ok || rawURL == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanVisitURL(rawURL, permsOf(execCtx), workspace) {
				return errorField("Permission denied: webfetch url not allowed")
			}

			format, _ := stringArg(input, "format")
			if format == "" {
				format = "markdown"
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := webfetchLimiter.Wait(ctx); err != nil {
				return errorFieldDetail("webfetch rate limit wait failed", err.Error())
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return errorFieldDetail("Invalid url", err.Error())
			}
			req.Header.Set("User-Agent", "agentcore-webfetch/1.0")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return errorFieldDetail("Failed to fetch url", err.Error())
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, webfetchMaxBytes))
			if err != nil {
				return errorFieldDetail("Failed to read response", err.Error())
			}
			if resp.StatusCode >= 400 {
				return errorFieldDetail("webfetch received an error response", resp.Status)
			}

			parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				return errorFieldDetail("Failed to parse html", err.Error())
			}
			parsed.Find("script, style, noscript").Remove()

			switch format {
			case "text":
				text := parsed.Find("body").Text()
				return map[string]any{"url": rawURL, "format": "text", "content": text}
			default:
				cleanedHTML, err := parsed.Html()
				if err != nil {
					return errorFieldDetail("Failed to render html", err.Error())
				}
				converter := htmltomarkdown.NewConverter("", true, nil)
				markdown, err := converter.ConvertString(cleanedHTML)
				if err != nil {
					return errorFieldDetail("Failed to convert to markdown", err.Error())
				}
				return map[string]any{"url": rawURL, "format": "markdown", "content": markdown}
			}
		},
	}
}
