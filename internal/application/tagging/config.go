package tagging

import (
	"net/url"
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/tagging"
)

// Defaults applied by Config.withDefaults
const (
	DefaultGlobalName    = "track"
	DefaultPageViewEvent = "PageView"
	DefaultRetryDelay    = 3 * time.Second
)

// IDPlaceholder is replaced by the tracking ID in URL templates
const IDPlaceholder = "{id}"

// Config configures a Coordinator
type Config struct {
	// TrackingID is the only parameter of the script and beacon URLs
	TrackingID string
	// ScriptURL is the external script URL template
	ScriptURL string
	// BeaconURL is the 1x1 image URL template
	BeaconURL string
	// GlobalName is the name of the global track function defined by the script
	GlobalName string
	// InlineSnippet is a self-contained bootstrap that defines the track global.
	// The inline strategy is skipped when empty.
	InlineSnippet string
	// PageViewEvent is the event carried by the beacon
	PageViewEvent string
	// RetryDelay schedules one more pass over the retryable strategies. Zero disables it.
	RetryDelay time.Duration
	// LoadTimeout fails a script load that has not completed. Zero selects the claim TTL.
	LoadTimeout time.Duration
	// Strategies overrides the strategy set. Empty selects the defaults.
	Strategies []tagging.StrategyDescriptor
}

func (c Config) withDefaults() Config {
	if c.GlobalName == "" {
		c.GlobalName = DefaultGlobalName
	}
	if c.PageViewEvent == "" {
		c.PageViewEvent = DefaultPageViewEvent
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = tagging.DefaultClaimTTL
	}
	if len(c.Strategies) == 0 {
		c.Strategies = tagging.DefaultStrategies()
	}
	c.Strategies = tagging.SortByPriority(c.Strategies)
	return c
}

// ExpandURL substitutes the tracking ID into a URL template
func ExpandURL(template, trackingID string) string {
	return strings.ReplaceAll(template, IDPlaceholder, url.QueryEscape(trackingID))
}

// BeaconURL builds the beacon request URL carrying the event as the ev parameter
func BeaconURL(template, trackingID, event string) string {
	raw := ExpandURL(template, trackingID)
	u, err := url.Parse(raw)
	if err != nil {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return raw + sep + "ev=" + url.QueryEscape(event)
	}
	q := u.Query()
	q.Set("ev", event)
	u.RawQuery = q.Encode()
	return u.String()
}
