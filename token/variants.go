package token

import (
	"time"

	"github.com/oarkflow/webauth/attrs"
)

// Wire attribute codes.  These are stable: changing one breaks every
// deployed token.
const (
	attrType            = "t"
	attrSubject         = "s"
	attrAuthzSubject    = "az"
	attrCreation        = "ct"
	attrExpiration      = "et"
	attrLastUsed        = "lt"
	attrSessionKey      = "k"
	attrInitialFactors  = "ia"
	attrSessionFactors  = "sf"
	attrLOA             = "loa"
	attrCredType        = "crt"
	attrCredService     = "crs"
	attrCredData        = "crd"
	attrErrorCode       = "ec"
	attrErrorMessage    = "em"
	attrSubjectAuth     = "sa"
	attrSubjectAuthData = "sad"
	attrUsername        = "u"
	attrPassword        = "p"
	attrOTP             = "otp"
	attrOTPType         = "ott"
	attrProxyType       = "pt"
	attrProxySubject    = "ps"
	attrProxyData       = "pd"
	attrWebKDCProxy     = "wp"
	attrCommand         = "cmd"
	attrRequestedType   = "rtt"
	attrReturnURL       = "ret"
	attrState           = "st"
	attrOptions         = "o"
)

// App is the token an application server sets in its own cookie to record
// an authenticated user, or, when SessionKey is set, to store the session
// key itself.  The two uses are mutually exclusive: a session-key app
// token carries no user attributes at all.
type App struct {
	Subject        string
	AuthzSubject   string
	SessionKey     []byte
	LastUsed       time.Time
	InitialFactors string
	SessionFactors string
	LOA            uint32
	Creation       time.Time
	Expiration     time.Time
}

// TokenType returns TypeApp.
func (t *App) TokenType() Type { return TypeApp }

func (t *App) validate(m mode, now time.Time) error {
	if err := checkExpiration(t.Expiration, TypeApp, m, now); err != nil {
		return err
	}
	if len(t.SessionKey) == 0 {
		if t.Subject == "" {
			return missingField("subject", TypeApp)
		}
		return nil
	}
	if t.Subject != "" {
		return notValidWith("subject", "session key", TypeApp)
	}
	if t.AuthzSubject != "" {
		return notValidWith("authz_subject", "session key", TypeApp)
	}
	if !t.LastUsed.IsZero() {
		return notValidWith("last_used", "session key", TypeApp)
	}
	if t.InitialFactors != "" {
		return notValidWith("initial_factors", "session key", TypeApp)
	}
	if t.SessionFactors != "" {
		return notValidWith("session_factors", "session key", TypeApp)
	}
	if t.LOA != 0 {
		return notValidWith("loa", "session key", TypeApp)
	}
	return nil
}

func (t *App) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(9)
	l.AddString(attrType, string(TypeApp))
	if t.Subject != "" {
		l.AddString(attrSubject, t.Subject)
	}
	if t.AuthzSubject != "" {
		l.AddString(attrAuthzSubject, t.AuthzSubject)
	}
	if len(t.SessionKey) > 0 {
		l.Add(attrSessionKey, t.SessionKey)
	}
	if !t.LastUsed.IsZero() {
		l.AddTime(attrLastUsed, t.LastUsed)
	}
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.SessionFactors != "" {
		l.AddString(attrSessionFactors, t.SessionFactors)
	}
	if t.LOA != 0 {
		l.AddUint32(attrLOA, t.LOA)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *App) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.AuthzSubject, _ = l.GetString(attrAuthzSubject)
	t.SessionKey, _ = l.Get(attrSessionKey)
	if t.LastUsed, _, err = l.GetTime(attrLastUsed); err != nil {
		return err
	}
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	t.SessionFactors, _ = l.GetString(attrSessionFactors)
	if t.LOA, _, err = l.GetUint32(attrLOA); err != nil {
		return err
	}
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// Cred carries a delegated credential (a Kerberos ticket) for a service.
type Cred struct {
	Subject    string
	Type       string
	Service    string
	Data       []byte
	Creation   time.Time
	Expiration time.Time
}

// TokenType returns TypeCred.
func (t *Cred) TokenType() Type { return TypeCred }

func (t *Cred) validate(m mode, now time.Time) error {
	if t.Subject == "" {
		return missingField("subject", TypeCred)
	}
	if t.Type == "" {
		return missingField("type", TypeCred)
	}
	if t.Service == "" {
		return missingField("service", TypeCred)
	}
	if err := checkData(t.Data, "data", TypeCred); err != nil {
		return err
	}
	if err := checkExpiration(t.Expiration, TypeCred, m, now); err != nil {
		return err
	}
	if t.Type != "krb5" {
		return unknownValue("credential type", t.Type, TypeCred)
	}
	return nil
}

func (t *Cred) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(6)
	l.AddString(attrType, string(TypeCred))
	l.AddString(attrSubject, t.Subject)
	l.AddString(attrCredType, t.Type)
	l.AddString(attrCredService, t.Service)
	l.Add(attrCredData, t.Data)
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *Cred) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.Type, _ = l.GetString(attrCredType)
	t.Service, _ = l.GetString(attrCredService)
	t.Data, _ = l.Get(attrCredData)
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// Error reports a WebKDC failure back to an application server.
type Error struct {
	Code     uint32
	Message  string
	Creation time.Time
}

// TokenType returns TypeError.
func (t *Error) TokenType() Type { return TypeError }

func (t *Error) validate(mode, time.Time) error {
	if t.Code == 0 {
		return missingField("code", TypeError)
	}
	if t.Message == "" {
		return missingField("message", TypeError)
	}
	return nil
}

func (t *Error) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(3)
	l.AddString(attrType, string(TypeError))
	l.AddUint32(attrErrorCode, t.Code)
	l.AddString(attrErrorMessage, t.Message)
	l.AddTime(attrCreation, orNow(t.Creation, now))
	return l
}

func (t *Error) fromAttrs(l *attrs.List) error {
	var err error
	if t.Code, _, err = l.GetUint32(attrErrorCode); err != nil {
		return err
	}
	t.Message, _ = l.GetString(attrErrorMessage)
	t.Creation, _, err = l.GetTime(attrCreation)
	return err
}

// ID asserts a user's identity to an application server.  The assertion
// is either the WebKDC's own word (auth "webkdc", subject required) or a
// Kerberos authenticator (auth "krb5", auth data required).
type ID struct {
	Subject        string
	Auth           string
	AuthData       []byte
	InitialFactors string
	SessionFactors string
	LOA            uint32
	Creation       time.Time
	Expiration     time.Time
}

// TokenType returns TypeID.
func (t *ID) TokenType() Type { return TypeID }

func (t *ID) validate(m mode, now time.Time) error {
	if t.Auth == "" {
		return missingField("auth", TypeID)
	}
	if err := checkExpiration(t.Expiration, TypeID, m, now); err != nil {
		return err
	}
	if t.Auth == "webkdc" && t.Subject == "" {
		return missingField("subject", TypeID)
	}
	if t.Auth == "krb5" {
		if err := checkData(t.AuthData, "auth_data", TypeID); err != nil {
			return err
		}
	}
	return checkSubjectAuth(t.Auth, TypeID)
}

func (t *ID) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(8)
	l.AddString(attrType, string(TypeID))
	if t.Subject != "" {
		l.AddString(attrSubject, t.Subject)
	}
	l.AddString(attrSubjectAuth, t.Auth)
	if len(t.AuthData) > 0 {
		l.Add(attrSubjectAuthData, t.AuthData)
	}
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.SessionFactors != "" {
		l.AddString(attrSessionFactors, t.SessionFactors)
	}
	if t.LOA != 0 {
		l.AddUint32(attrLOA, t.LOA)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *ID) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.Auth, _ = l.GetString(attrSubjectAuth)
	t.AuthData, _ = l.Get(attrSubjectAuthData)
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	t.SessionFactors, _ = l.GetString(attrSessionFactors)
	if t.LOA, _, err = l.GetUint32(attrLOA); err != nil {
		return err
	}
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// Login carries the user's credentials from the login form to the WebKDC.
// Exactly one of Password and OTP must be set.
type Login struct {
	Username string
	Password string
	OTP      string
	OTPType  string
	Creation time.Time
}

// TokenType returns TypeLogin.
func (t *Login) TokenType() Type { return TypeLogin }

func (t *Login) validate(mode, time.Time) error {
	if t.Username == "" {
		return missingField("username", TypeLogin)
	}
	if t.Password == "" && t.OTP == "" {
		return missingField("either password or otp", TypeLogin)
	}
	if t.Password != "" && t.OTP != "" {
		return notValidWith("password", "otp", TypeLogin)
	}
	if t.Password != "" && t.OTPType != "" {
		return notValidWith("otp_type", "password", TypeLogin)
	}
	return nil
}

func (t *Login) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(5)
	l.AddString(attrType, string(TypeLogin))
	l.AddString(attrUsername, t.Username)
	if t.Password != "" {
		l.AddString(attrPassword, t.Password)
	}
	if t.OTP != "" {
		l.AddString(attrOTP, t.OTP)
	}
	if t.OTPType != "" {
		l.AddString(attrOTPType, t.OTPType)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	return l
}

func (t *Login) fromAttrs(l *attrs.List) error {
	var err error
	t.Username, _ = l.GetString(attrUsername)
	t.Password, _ = l.GetString(attrPassword)
	t.OTP, _ = l.GetString(attrOTP)
	t.OTPType, _ = l.GetString(attrOTPType)
	t.Creation, _, err = l.GetTime(attrCreation)
	return err
}

// Proxy lets an application server ask the WebKDC to use a stored
// webkdc-proxy token on its behalf, for instance to obtain credentials.
type Proxy struct {
	Subject        string
	Type           string
	WebKDCProxy    []byte
	InitialFactors string
	SessionFactors string
	LOA            uint32
	Creation       time.Time
	Expiration     time.Time
}

// TokenType returns TypeProxy.
func (t *Proxy) TokenType() Type { return TypeProxy }

func (t *Proxy) validate(m mode, now time.Time) error {
	if t.Subject == "" {
		return missingField("subject", TypeProxy)
	}
	if t.Type == "" {
		return missingField("type", TypeProxy)
	}
	if err := checkData(t.WebKDCProxy, "webkdc_proxy", TypeProxy); err != nil {
		return err
	}
	if err := checkExpiration(t.Expiration, TypeProxy, m, now); err != nil {
		return err
	}
	if t.Type != "krb5" {
		return unknownValue("proxy type", t.Type, TypeProxy)
	}
	return nil
}

func (t *Proxy) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(8)
	l.AddString(attrType, string(TypeProxy))
	l.AddString(attrSubject, t.Subject)
	l.AddString(attrProxyType, t.Type)
	l.Add(attrWebKDCProxy, t.WebKDCProxy)
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.SessionFactors != "" {
		l.AddString(attrSessionFactors, t.SessionFactors)
	}
	if t.LOA != 0 {
		l.AddUint32(attrLOA, t.LOA)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *Proxy) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.Type, _ = l.GetString(attrProxyType)
	t.WebKDCProxy, _ = l.Get(attrWebKDCProxy)
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	t.SessionFactors, _ = l.GetString(attrSessionFactors)
	if t.LOA, _, err = l.GetUint32(attrLOA); err != nil {
		return err
	}
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// Request is sent by an application server to the WebKDC.  It is either a
// command (Command set, everything else clear) or a request for a new
// token of the given type to be returned to ReturnURL.
type Request struct {
	Command        string
	Type           string
	Auth           string
	ProxyType      string
	State          []byte
	ReturnURL      string
	Options        string
	InitialFactors string
	SessionFactors string
	Creation       time.Time
}

// TokenType returns TypeRequest.
func (t *Request) TokenType() Type { return TypeRequest }

func (t *Request) validate(mode, time.Time) error {
	if t.Command != "" {
		switch {
		case t.Type != "":
			return notValidWith("type", "command", TypeRequest)
		case t.Auth != "":
			return notValidWith("auth", "command", TypeRequest)
		case t.ProxyType != "":
			return notValidWith("proxy_type", "command", TypeRequest)
		case t.State != nil:
			return notValidWith("state", "command", TypeRequest)
		case t.ReturnURL != "":
			return notValidWith("return_url", "command", TypeRequest)
		case t.Options != "":
			return notValidWith("options", "command", TypeRequest)
		case t.InitialFactors != "":
			return notValidWith("initial_factors", "command", TypeRequest)
		case t.SessionFactors != "":
			return notValidWith("session_factors", "command", TypeRequest)
		}
		return nil
	}
	if t.Type == "" {
		return missingField("type", TypeRequest)
	}
	if t.ReturnURL == "" {
		return missingField("return_url", TypeRequest)
	}
	switch t.Type {
	case "id":
		if t.Auth == "" {
			return missingField("auth", TypeRequest)
		}
		return checkSubjectAuth(t.Auth, TypeRequest)
	case "proxy":
		if t.ProxyType == "" {
			return missingField("proxy_type", TypeRequest)
		}
		if t.ProxyType != "krb5" {
			return unknownValue("proxy type", t.ProxyType, TypeRequest)
		}
		return nil
	default:
		return unknownValue("requested token type", t.Type, TypeRequest)
	}
}

func (t *Request) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(10)
	l.AddString(attrType, string(TypeRequest))
	if t.Command != "" {
		l.AddString(attrCommand, t.Command)
	}
	if t.Type != "" {
		l.AddString(attrRequestedType, t.Type)
	}
	if t.Auth != "" {
		l.AddString(attrSubjectAuth, t.Auth)
	}
	if t.ProxyType != "" {
		l.AddString(attrProxyType, t.ProxyType)
	}
	if len(t.State) > 0 {
		l.Add(attrState, t.State)
	}
	if t.ReturnURL != "" {
		l.AddString(attrReturnURL, t.ReturnURL)
	}
	if t.Options != "" {
		l.AddString(attrOptions, t.Options)
	}
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.SessionFactors != "" {
		l.AddString(attrSessionFactors, t.SessionFactors)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	return l
}

func (t *Request) fromAttrs(l *attrs.List) error {
	var err error
	t.Command, _ = l.GetString(attrCommand)
	t.Type, _ = l.GetString(attrRequestedType)
	t.Auth, _ = l.GetString(attrSubjectAuth)
	t.ProxyType, _ = l.GetString(attrProxyType)
	t.State, _ = l.Get(attrState)
	t.ReturnURL, _ = l.GetString(attrReturnURL)
	t.Options, _ = l.GetString(attrOptions)
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	t.SessionFactors, _ = l.GetString(attrSessionFactors)
	t.Creation, _, err = l.GetTime(attrCreation)
	return err
}

// WebKDCFactor records extra authentication factors the WebKDC has
// verified for a user, outliving any single login session.
type WebKDCFactor struct {
	Subject        string
	InitialFactors string
	SessionFactors string
	Creation       time.Time
	Expiration     time.Time
}

// TokenType returns TypeWebKDCFactor.
func (t *WebKDCFactor) TokenType() Type { return TypeWebKDCFactor }

func (t *WebKDCFactor) validate(m mode, now time.Time) error {
	if t.Subject == "" {
		return missingField("subject", TypeWebKDCFactor)
	}
	if err := checkExpiration(t.Expiration, TypeWebKDCFactor, m, now); err != nil {
		return err
	}
	if t.InitialFactors == "" && t.SessionFactors == "" {
		return missingField("factors", TypeWebKDCFactor)
	}
	return nil
}

func (t *WebKDCFactor) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(5)
	l.AddString(attrType, string(TypeWebKDCFactor))
	l.AddString(attrSubject, t.Subject)
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.SessionFactors != "" {
		l.AddString(attrSessionFactors, t.SessionFactors)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *WebKDCFactor) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	t.SessionFactors, _ = l.GetString(attrSessionFactors)
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// WebKDCProxy is the token the WebKDC issues to itself to remember a
// user's authentication across requests.  ProxySubject identifies the
// party allowed to use the token.
type WebKDCProxy struct {
	Subject        string
	ProxyType      string
	ProxySubject   string
	Data           []byte
	InitialFactors string
	LOA            uint32
	Creation       time.Time
	Expiration     time.Time
}

// TokenType returns TypeWebKDCProxy.
func (t *WebKDCProxy) TokenType() Type { return TypeWebKDCProxy }

func (t *WebKDCProxy) validate(m mode, now time.Time) error {
	if t.Subject == "" {
		return missingField("subject", TypeWebKDCProxy)
	}
	if t.ProxyType == "" {
		return missingField("proxy_type", TypeWebKDCProxy)
	}
	if t.ProxySubject == "" {
		return missingField("proxy_subject", TypeWebKDCProxy)
	}
	if err := checkData(t.Data, "data", TypeWebKDCProxy); err != nil {
		return err
	}
	if err := checkExpiration(t.Expiration, TypeWebKDCProxy, m, now); err != nil {
		return err
	}
	switch t.ProxyType {
	case "krb5", "remuser", "otp":
		return nil
	}
	return unknownValue("proxy type", t.ProxyType, TypeWebKDCProxy)
}

func (t *WebKDCProxy) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(8)
	l.AddString(attrType, string(TypeWebKDCProxy))
	l.AddString(attrSubject, t.Subject)
	l.AddString(attrProxyType, t.ProxyType)
	l.AddString(attrProxySubject, t.ProxySubject)
	l.Add(attrProxyData, t.Data)
	if t.InitialFactors != "" {
		l.AddString(attrInitialFactors, t.InitialFactors)
	}
	if t.LOA != 0 {
		l.AddUint32(attrLOA, t.LOA)
	}
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *WebKDCProxy) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.ProxyType, _ = l.GetString(attrProxyType)
	t.ProxySubject, _ = l.GetString(attrProxySubject)
	t.Data, _ = l.Get(attrProxyData)
	t.InitialFactors, _ = l.GetString(attrInitialFactors)
	if t.LOA, _, err = l.GetUint32(attrLOA); err != nil {
		return err
	}
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}

// WebKDCService holds the session key a WebKDC shares with one
// application server.
type WebKDCService struct {
	Subject    string
	SessionKey []byte
	Creation   time.Time
	Expiration time.Time
}

// TokenType returns TypeWebKDCService.
func (t *WebKDCService) TokenType() Type { return TypeWebKDCService }

func (t *WebKDCService) validate(m mode, now time.Time) error {
	if t.Subject == "" {
		return missingField("subject", TypeWebKDCService)
	}
	if err := checkData(t.SessionKey, "session_key", TypeWebKDCService); err != nil {
		return err
	}
	return checkExpiration(t.Expiration, TypeWebKDCService, m, now)
}

func (t *WebKDCService) toAttrs(now time.Time) *attrs.List {
	l := attrs.New(4)
	l.AddString(attrType, string(TypeWebKDCService))
	l.AddString(attrSubject, t.Subject)
	l.Add(attrSessionKey, t.SessionKey)
	l.AddTime(attrCreation, orNow(t.Creation, now))
	l.AddTime(attrExpiration, t.Expiration)
	return l
}

func (t *WebKDCService) fromAttrs(l *attrs.List) error {
	var err error
	t.Subject, _ = l.GetString(attrSubject)
	t.SessionKey, _ = l.Get(attrSessionKey)
	if t.Creation, _, err = l.GetTime(attrCreation); err != nil {
		return err
	}
	t.Expiration, _, err = l.GetTime(attrExpiration)
	return err
}
