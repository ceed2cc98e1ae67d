package portal

import (
	"mime"
	"net/url"
	"unicode/utf8"
)

const formContentType = "application/x-www-form-urlencoded"

// Messages shown on the error page.
const (
	msgMissingSSID       = "Missing ssid field in submission"
	msgMissingPassword   = "Missing password field in submission"
	msgEmptySSID         = "SSID cannot be empty"
	msgEmptyPassword     = "Password cannot be empty"
	msgInvalidSSID       = "SSID is not valid UTF-8"
	msgInvalidPassword   = "Password is not valid UTF-8"
	msgMalformedForm     = "Could not decode form data"
	msgUnsupportedType   = "Unsupported content type, expected " + formContentType
	msgMalformedRequest  = "Could not parse request"
	msgUnsupportedMethod = "Unsupported request method"
)

// Submission is a credential pair posted through the portal form.
type Submission struct {
	SSID     string
	Password string
}

// FormError describes why a submission was rejected. Message is safe to show
// to the end user.
type FormError struct {
	// Field is "ssid" or "password", or empty when the body as a whole was
	// unusable.
	Field   string
	Message string
}

func (e *FormError) Error() string {
	return e.Message
}

// ParseSubmission validates a POST body.
//
// Values are decoded with net/url rules: "+" is a space and %XX is a raw
// byte. Malformed escapes are rejected, and so are values that do not decode
// to valid UTF-8. Both fields must be present and non-empty.
func ParseSubmission(contentType string, body []byte) (*Submission, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != formContentType {
			return nil, &FormError{Message: msgUnsupportedType}
		}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &FormError{Message: msgMalformedForm}
	}

	if _, ok := values["ssid"]; !ok {
		return nil, &FormError{Field: "ssid", Message: msgMissingSSID}
	}
	if _, ok := values["password"]; !ok {
		return nil, &FormError{Field: "password", Message: msgMissingPassword}
	}

	sub := &Submission{
		SSID:     values.Get("ssid"),
		Password: values.Get("password"),
	}

	switch {
	case sub.SSID == "":
		return nil, &FormError{Field: "ssid", Message: msgEmptySSID}
	case sub.Password == "":
		return nil, &FormError{Field: "password", Message: msgEmptyPassword}
	case !utf8.ValidString(sub.SSID):
		return nil, &FormError{Field: "ssid", Message: msgInvalidSSID}
	case !utf8.ValidString(sub.Password):
		return nil, &FormError{Field: "password", Message: msgInvalidPassword}
	}

	return sub, nil
}
