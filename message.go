package messaging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/durationpb"
)

const topicPrefix = "/topics/"

var (
	bareTopicPattern = regexp.MustCompile(`^[a-zA-Z0-9-_.~%]+$`)
	colorPattern     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// Message is one FCM message. Exactly one of Token, Topic or Condition must
// be set.
type Message struct {
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Android      *AndroidConfig    `json:"android,omitempty"`
	Webpush      *WebpushConfig    `json:"webpush,omitempty"`
	APNS         *APNSConfig       `json:"apns,omitempty"`
	FCMOptions   *FCMOptions       `json:"fcm_options,omitempty"`
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"-"`
	Condition    string            `json:"condition,omitempty"`
}

// MarshalJSON encodes the message in the FCM v1 wire format. A topic given
// as "/topics/news" is sent as "news".
func (m Message) MarshalJSON() ([]byte, error) {
	type messageInternal Message
	return json.Marshal(&struct {
		Topic string `json:"topic,omitempty"`
		*messageInternal
	}{
		Topic:           strings.TrimPrefix(m.Topic, topicPrefix),
		messageInternal: (*messageInternal)(&m),
	})
}

// Notification is the basic notification shown on all platforms.
type Notification struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image,omitempty"`
}

// FCMOptions holds platform-independent FCM features.
type FCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
}

// ---------------------------------------------------------------------------
// Android
// ---------------------------------------------------------------------------

// AndroidConfig holds Android-specific options.
type AndroidConfig struct {
	CollapseKey           string               `json:"collapse_key,omitempty"`
	Priority              string               `json:"priority,omitempty"` // "normal" or "high"
	TTL                   *time.Duration       `json:"-"`
	RestrictedPackageName string               `json:"restricted_package_name,omitempty"`
	Data                  map[string]string    `json:"data,omitempty"`
	Notification          *AndroidNotification `json:"notification,omitempty"`
	FCMOptions            *AndroidFCMOptions   `json:"fcm_options,omitempty"`
}

// MarshalJSON encodes TTL as a google.protobuf.Duration string ("3.500s").
func (a AndroidConfig) MarshalJSON() ([]byte, error) {
	var ttl json.RawMessage
	if a.TTL != nil {
		b, err := protojson.Marshal(durationpb.New(*a.TTL))
		if err != nil {
			return nil, fmt.Errorf("encoding android ttl: %w", err)
		}
		ttl = b
	}

	type androidInternal AndroidConfig
	return json.Marshal(&struct {
		TTL json.RawMessage `json:"ttl,omitempty"`
		*androidInternal
	}{
		TTL:             ttl,
		androidInternal: (*androidInternal)(&a),
	})
}

// AndroidNotification is the notification shown on Android devices.
type AndroidNotification struct {
	Title        string   `json:"title,omitempty"`
	Body         string   `json:"body,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	Color        string   `json:"color,omitempty"` // #RRGGBB
	Sound        string   `json:"sound,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	ClickAction  string   `json:"click_action,omitempty"`
	BodyLocKey   string   `json:"body_loc_key,omitempty"`
	BodyLocArgs  []string `json:"body_loc_args,omitempty"`
	TitleLocKey  string   `json:"title_loc_key,omitempty"`
	TitleLocArgs []string `json:"title_loc_args,omitempty"`
	ChannelID    string   `json:"channel_id,omitempty"`
	ImageURL     string   `json:"image,omitempty"`
}

// AndroidFCMOptions holds Android-specific FCM features.
type AndroidFCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
}

// ---------------------------------------------------------------------------
// Webpush
// ---------------------------------------------------------------------------

// WebpushConfig holds Webpush protocol options.
type WebpushConfig struct {
	Headers      map[string]string    `json:"headers,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
	Notification *WebpushNotification `json:"notification,omitempty"`
	FCMOptions   *WebpushFCMOptions   `json:"fcm_options,omitempty"`
}

// WebpushNotification is a Web Notification payload.
type WebpushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// WebpushFCMOptions holds Webpush-specific FCM features.
type WebpushFCMOptions struct {
	Link string `json:"link,omitempty"` // must be HTTPS
}

// ---------------------------------------------------------------------------
// APNs
// ---------------------------------------------------------------------------

// APNSConfig holds Apple Push Notification Service options.
type APNSConfig struct {
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    *APNSPayload      `json:"payload,omitempty"`
	FCMOptions *APNSFCMOptions   `json:"fcm_options,omitempty"`
}

// APNSPayload is the APNs payload: the aps dictionary plus custom keys.
type APNSPayload struct {
	Aps        *Aps
	CustomData map[string]any
}

// MarshalJSON flattens CustomData next to the aps dictionary.
func (p APNSPayload) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.CustomData)+1)
	for k, v := range p.CustomData {
		m[k] = v
	}
	if p.Aps != nil {
		m["aps"] = p.Aps
	}
	return json.Marshal(m)
}

// Aps is the aps dictionary of an APNs payload.
type Aps struct {
	Alert            string `json:"alert,omitempty"`
	Badge            *int   `json:"badge,omitempty"`
	Sound            string `json:"sound,omitempty"`
	ContentAvailable bool   `json:"-"`
	MutableContent   bool   `json:"-"`
	Category         string `json:"category,omitempty"`
	ThreadID         string `json:"thread-id,omitempty"`
}

// MarshalJSON encodes the boolean flags as the integer 1 APNs expects.
func (a Aps) MarshalJSON() ([]byte, error) {
	type apsInternal Aps
	s := &struct {
		ContentAvailable *int `json:"content-available,omitempty"`
		MutableContent   *int `json:"mutable-content,omitempty"`
		*apsInternal
	}{apsInternal: (*apsInternal)(&a)}
	one := 1
	if a.ContentAvailable {
		s.ContentAvailable = &one
	}
	if a.MutableContent {
		s.MutableContent = &one
	}
	return json.Marshal(s)
}

// APNSFCMOptions holds APNs-specific FCM features.
type APNSFCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
	ImageURL       string `json:"image,omitempty"`
}

// ---------------------------------------------------------------------------
// Multicast
// ---------------------------------------------------------------------------

// MulticastMessage sends the same payload to up to 500 registration tokens.
type MulticastMessage struct {
	Tokens       []string
	Data         map[string]string
	Notification *Notification
	Android      *AndroidConfig
	Webpush      *WebpushConfig
	APNS         *APNSConfig
	FCMOptions   *FCMOptions
}

// toMessages fans the multicast out into one Message per token.
func (mm *MulticastMessage) toMessages() ([]*Message, error) {
	if mm == nil {
		return nil, invalidArgument("message must not be nil")
	}
	if len(mm.Tokens) == 0 {
		return nil, invalidArgument("tokens must not be empty")
	}
	if len(mm.Tokens) > maxBatchSize {
		return nil, invalidArgument("tokens must not contain more than %d elements", maxBatchSize)
	}
	return slice.Map(mm.Tokens, func(_ int, token string) *Message {
		return &Message{
			Token:        token,
			Data:         mm.Data,
			Notification: mm.Notification,
			Android:      mm.Android,
			Webpush:      mm.Webpush,
			APNS:         mm.APNS,
			FCMOptions:   mm.FCMOptions,
		}
	}), nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func validateMessage(m *Message) error {
	if m == nil {
		return invalidArgument("message must not be nil")
	}

	targets := 0
	for _, t := range []string{m.Token, m.Topic, m.Condition} {
		if t != "" {
			targets++
		}
	}
	if targets != 1 {
		return invalidArgument("exactly one of token, topic or condition must be specified")
	}

	if m.Topic != "" && !bareTopicPattern.MatchString(strings.TrimPrefix(m.Topic, topicPrefix)) {
		return invalidArgument("malformed topic name %q", m.Topic)
	}

	if m.Notification != nil && m.Notification.ImageURL != "" {
		if _, err := url.ParseRequestURI(m.Notification.ImageURL); err != nil {
			return invalidArgument("malformed image url %q", m.Notification.ImageURL)
		}
	}

	if err := validateAndroidConfig(m.Android); err != nil {
		return err
	}
	if err := validateWebpushConfig(m.Webpush); err != nil {
		return err
	}
	return validateAPNSConfig(m.APNS)
}

func validateAndroidConfig(c *AndroidConfig) error {
	if c == nil {
		return nil
	}
	if c.Priority != "" && c.Priority != "normal" && c.Priority != "high" {
		return invalidArgument("android priority must be 'normal' or 'high'")
	}
	if c.TTL != nil && *c.TTL < 0 {
		return invalidArgument("android ttl must not be negative")
	}

	n := c.Notification
	if n == nil {
		return nil
	}
	if n.Color != "" && !colorPattern.MatchString(n.Color) {
		return invalidArgument("android notification color must be in the form #RRGGBB")
	}
	if len(n.TitleLocArgs) > 0 && n.TitleLocKey == "" {
		return invalidArgument("titleLocKey is required when specifying titleLocArgs")
	}
	if len(n.BodyLocArgs) > 0 && n.BodyLocKey == "" {
		return invalidArgument("bodyLocKey is required when specifying bodyLocArgs")
	}
	return nil
}

func validateWebpushConfig(c *WebpushConfig) error {
	if c == nil || c.FCMOptions == nil || c.FCMOptions.Link == "" {
		return nil
	}
	u, err := url.ParseRequestURI(c.FCMOptions.Link)
	if err != nil || u.Scheme != "https" {
		return invalidArgument("webpush link must be a valid HTTPS URL")
	}
	return nil
}

func validateAPNSConfig(c *APNSConfig) error {
	if c == nil || c.Payload == nil {
		return nil
	}
	if _, ok := c.Payload.CustomData["aps"]; ok && c.Payload.Aps != nil {
		return invalidArgument("multiple specifications for aps")
	}
	return nil
}
