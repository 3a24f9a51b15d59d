package httperr

// reasonPhrases is the bundled status-code to reason-phrase table the
// response writer consults to build the status line. Hard-coded per the
// standard IANA registry, as spec.md permits in place of a loaded JSON
// table.
var reasonPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// ReasonPhrase returns the registered reason phrase for code. Looking up
// an unregistered code is a programmer error per spec.md §4.7; callers
// that need to guard against it should check Registered first.
func ReasonPhrase(code int) string {
	if phrase, ok := reasonPhrases[code]; ok {
		return phrase
	}
	panic("httperr: unregistered status code")
}

// Registered reports whether code has a known reason phrase.
func Registered(code int) bool {
	_, ok := reasonPhrases[code]
	return ok
}
