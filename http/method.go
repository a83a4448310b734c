package http

// Method is a known request method. Tokens are matched case-sensitively.
type Method uint8

const (
	// RFC 9110
	MethodConnect Method = iota + 1
	MethodDelete
	MethodGet
	MethodHead
	MethodOptions
	MethodPatch
	MethodPost
	MethodPut
	MethodTrace

	// WebDAV, RFC 4918
	MethodCopy
	MethodLock
	MethodMkcol
	MethodMove
	MethodPropfind
	MethodProppatch
	MethodUnlock

	// WebDAV extensions
	MethodMkcalendar // RFC 4791
	MethodReport     // RFC 3253
	MethodSearch     // RFC 5323

	// Cache invalidation, nginx and Varnish
	MethodPurge

	methodCount = int(MethodPurge) + 1
)

var methodNames = [methodCount]string{
	MethodConnect:    "CONNECT",
	MethodDelete:     "DELETE",
	MethodGet:        "GET",
	MethodHead:       "HEAD",
	MethodOptions:    "OPTIONS",
	MethodPatch:      "PATCH",
	MethodPost:       "POST",
	MethodPut:        "PUT",
	MethodTrace:      "TRACE",
	MethodCopy:       "COPY",
	MethodLock:       "LOCK",
	MethodMkcol:      "MKCOL",
	MethodMove:       "MOVE",
	MethodPropfind:   "PROPFIND",
	MethodProppatch:  "PROPPATCH",
	MethodUnlock:     "UNLOCK",
	MethodMkcalendar: "MKCALENDAR",
	MethodReport:     "REPORT",
	MethodSearch:     "SEARCH",
	MethodPurge:      "PURGE",
}

// ParseMethod returns the Method for an exact, uppercase token.
func ParseMethod(token string) (Method, bool) {
	for m := 1; m < methodCount; m++ {
		if methodNames[m] == token {
			return Method(m), true
		}
	}
	return 0, false
}

func (m Method) String() string {
	if !m.valid() {
		return "UNKNOWN"
	}
	return methodNames[m]
}

func (m Method) valid() bool {
	return m > 0 && int(m) < methodCount
}
