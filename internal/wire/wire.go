// Package wire implements the backend request/response framing: the fetch
// endpoint's JSON body fields and headers, the realtime endpoint's connect
// body and chunk framing. It builds and reads JSON with gjson/sjson rather
// than struct tags: the backend's payloads are loose, semi-structured
// documents, not a fixed schema worth mirroring in types.
package wire

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/rconfig/engine/internal/container"
)

// FetchURL renders the fetch endpoint URL for a project/namespace pair.
func FetchURL(base, projectNumber, namespace string) string {
	return fmt.Sprintf("%s/v1/projects/%s/namespaces/%s:fetch", base, projectNumber, namespace)
}

// RealtimeURL renders the realtime stream endpoint URL for a
// project/namespace pair.
func RealtimeURL(base, projectNumber, namespace string) string {
	return fmt.Sprintf("%s/v1/projects/%s/namespaces/%s:streamFetchInvalidations", base, projectNumber, namespace)
}

// Header names used by the fetch and realtime endpoints.
const (
	HeaderAPIKey            = "X-Goog-Api-Key"
	HeaderInstallationsAuth = "X-Goog-Firebase-Installations-Auth"
	HeaderAndroidPackage    = "X-Android-Package"
	HeaderAndroidCert       = "X-Android-Cert"
	HeaderCanRetry          = "X-Google-GFE-Can-Retry"
	HeaderIfNoneMatch       = "If-None-Match"
	HeaderAcceptStreaming   = "X-Accept-Response-Streaming"
	HeaderRequestID         = "X-Request-Id"
)

// FetchRequestInfo carries everything BuildFetchRequest needs to assemble
// a fetch body, gathered from the host application and the installation
// collaborator.
type FetchRequestInfo struct {
	AppInstanceID           string
	AppInstanceIDToken      string
	AppID                   string
	CountryCode             string
	LanguageCode            string
	PlatformVersion         string
	TimeZone                string
	AppVersion              string
	PackageName             string
	AndroidCertSHA1         string
	SDKVersion              string
	AnalyticsUserProperties map[string]string
	CustomSignals           map[string]any
}

// BuildFetchRequest renders the fetch endpoint's JSON body.
func BuildFetchRequest(info FetchRequestInfo) ([]byte, error) {
	json := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		json, err = sjson.Set(json, path, value)
	}

	set("app_instance_id", info.AppInstanceID)
	set("app_instance_id_token", info.AppInstanceIDToken)
	set("app_id", info.AppID)
	set("country_code", info.CountryCode)
	set("language_code", info.LanguageCode)
	set("platform_version", info.PlatformVersion)
	set("time_zone", info.TimeZone)
	set("app_version", info.AppVersion)
	set("package_name", info.PackageName)
	set("sdk_version", info.SDKVersion)

	props := info.AnalyticsUserProperties
	if props == nil {
		props = map[string]string{}
	}
	set("analytics_user_properties", props)

	for k, v := range info.CustomSignals {
		set("custom_signals."+k, v)
	}

	if err != nil {
		return nil, fmt.Errorf("wire: build fetch request: %w", err)
	}
	return []byte(json), nil
}

// FetchResponseState is the backend's reported update state.
type FetchResponseState string

const (
	StateNoChange FetchResponseState = "NO_CHANGE"
	StateUpdate   FetchResponseState = "UPDATE"
)

// FetchResponse is the parsed shape of a 200 response body.
type FetchResponse struct {
	State                   FetchResponseState
	Entries                 map[string]string
	ExperimentDescriptions  []container.ExperimentDescriptor
	PersonalizationMetadata map[string]container.PersonalizationMetadata
	TemplateVersion         int64
	HasEntries              bool
}

// ParseFetchResponse parses a fetch response body: an optional "state", an
// "entries" flat string map, an "experimentDescriptions" array, a
// "personalizationMetadata" object and an optional "templateVersion"
// number. A response with no "entries" object is reported via
// HasEntries=false; the state is reported as-is in State. The fetch
// handler treats HasEntries=false, or a NO_CHANGE state, as
// BACKEND_HAS_NO_UPDATES.
func ParseFetchResponse(body []byte) (FetchResponse, error) {
	if !gjson.ValidBytes(body) {
		return FetchResponse{}, fmt.Errorf("wire: fetch response is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	resp := FetchResponse{
		State:           FetchResponseState(root.Get("state").String()),
		TemplateVersion: root.Get("templateVersion").Int(),
	}

	entries := root.Get("entries")
	if entries.Exists() && entries.IsObject() {
		resp.HasEntries = true
		resp.Entries = make(map[string]string, len(entries.Map()))
		for k, v := range entries.Map() {
			resp.Entries[k] = v.String()
		}
	}

	for _, exp := range root.Get("experimentDescriptions").Array() {
		desc := container.ExperimentDescriptor{
			ID: exp.Get("experimentId").String(),
		}
		for _, key := range exp.Get("affectedParameterKey").Array() {
			desc.AffectedParameterKeys = append(desc.AffectedParameterKeys, key.String())
		}
		if raw := exp.Raw; raw != "" {
			desc.Metadata = []byte(raw)
		}
		resp.ExperimentDescriptions = append(resp.ExperimentDescriptions, desc)
	}

	personalization := root.Get("personalizationMetadata")
	if personalization.IsObject() {
		resp.PersonalizationMetadata = make(map[string]container.PersonalizationMetadata)
		for key, meta := range personalization.Map() {
			resp.PersonalizationMetadata[key] = container.PersonalizationMetadata{
				ChoiceID:          meta.Get("choiceId").String(),
				PersonalizationID: meta.Get("personalizationId").String(),
				ArmIndex:          int(meta.Get("armIndex").Int()),
				Group:             meta.Get("group").String(),
			}
		}
	}

	return resp, nil
}

// RealtimeConnectInfo carries the fields the realtime connect body needs.
type RealtimeConnectInfo struct {
	Project                string
	Namespace              string
	LastKnownVersionNumber int64
	AppID                  string
	SDKVersion             string
}

// BuildRealtimeConnectBody renders the realtime endpoint's connect body.
func BuildRealtimeConnectBody(info RealtimeConnectInfo) ([]byte, error) {
	json := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		json, err = sjson.Set(json, path, value)
	}
	set("project", info.Project)
	set("namespace", info.Namespace)
	set("lastKnownVersionNumber", info.LastKnownVersionNumber)
	set("appId", info.AppID)
	set("sdkVersion", info.SDKVersion)
	if err != nil {
		return nil, fmt.Errorf("wire: build realtime connect body: %w", err)
	}
	return []byte(json), nil
}

// ExtractStreamEnvelope applies the stream framing rule: given an
// accumulated buffer that contains at least one "}", return the substring
// from the first "{" to the last "}" inclusive. If the buffer has no "{"
// or no "}", it returns ("", false) and the caller keeps accumulating.
// Multiple JSON objects concatenated on one logical line are deliberately
// not separated: only the outermost envelope is extracted, and changing
// that would be a protocol change, not a parser fix.
func ExtractStreamEnvelope(accumulated string) (string, bool) {
	open := indexByte(accumulated, '{')
	closeIdx := lastIndexByte(accumulated, '}')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return "", false
	}
	envelope := accumulated[open : closeIdx+1]
	if envelope == "" {
		return "", false
	}
	return envelope, true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// StreamMessage is a parsed realtime envelope's recognized fields.
type StreamMessage struct {
	FeatureDisabled             bool
	HasLatestTemplateVersion    bool
	LatestTemplateVersionNumber int64
}

// ParseStreamMessage parses one extracted envelope into its recognized
// keys. An envelope that parses as JSON but contains neither recognized
// key yields a zero StreamMessage, which the caller treats as a no-op
// message rather than an error.
func ParseStreamMessage(envelope string) (StreamMessage, error) {
	if !gjson.Valid(envelope) {
		return StreamMessage{}, fmt.Errorf("wire: stream envelope is not valid JSON")
	}
	root := gjson.Parse(envelope)
	msg := StreamMessage{}
	if root.Get("featureDisabled").Bool() {
		msg.FeatureDisabled = true
	}
	if v := root.Get("latestTemplateVersionNumber"); v.Exists() {
		msg.HasLatestTemplateVersion = true
		msg.LatestTemplateVersionNumber = v.Int()
	}
	return msg, nil
}
