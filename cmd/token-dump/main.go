// token-dump decodes a WebAuth token against a keyring and prints its
// fields, for debugging token flows between a WebKDC and its application
// servers.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oarkflow/webauth/keyring"
	"github.com/oarkflow/webauth/token"
)

type Config struct {
	RingPath    string
	TokenInput  string
	TypeName    string
	ShowVersion bool
}

const version = "1.0.0"

func main() {
	config := &Config{}
	flag.StringVar(&config.RingPath, "file", os.Getenv("WEBAUTH_KEYRING"), "Path to the keyring file")
	flag.StringVar(&config.RingPath, "f", os.Getenv("WEBAUTH_KEYRING"), "Path to the keyring file (shorthand)")
	flag.StringVar(&config.TokenInput, "token", "", "Base64 token to decode (default: first argument)")
	flag.StringVar(&config.TypeName, "type", "any", "Expected token type, or 'any'")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version information")
	flag.Parse()

	if config.ShowVersion {
		fmt.Printf("token-dump v%s\n", version)
		os.Exit(0)
	}
	if config.TokenInput == "" && flag.NArg() > 0 {
		config.TokenInput = flag.Arg(0)
	}
	if config.RingPath == "" {
		log.Fatal("no keyring file given (use -file)")
	}
	if config.TokenInput == "" {
		log.Fatal("no token given")
	}

	ring, err := keyring.Read(config.RingPath)
	if err != nil {
		log.Fatalf("cannot read keyring: %v", err)
	}
	decoded, err := token.Decode(config.TokenInput, token.Type(config.TypeName), ring)
	if err != nil {
		log.Fatalf("cannot decode token: %v", err)
	}
	dump(decoded)
}

func dump(t token.Token) {
	fmt.Printf("type: %s\n", t.TokenType())
	switch tok := t.(type) {
	case *token.App:
		printStr("subject", tok.Subject)
		printStr("authz subject", tok.AuthzSubject)
		printData("session key", tok.SessionKey)
		printTime("last used", tok.LastUsed)
		printStr("initial factors", tok.InitialFactors)
		printStr("session factors", tok.SessionFactors)
		printNum("loa", tok.LOA)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.Cred:
		printStr("subject", tok.Subject)
		printStr("cred type", tok.Type)
		printStr("service", tok.Service)
		printData("data", tok.Data)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.Error:
		printNum("code", tok.Code)
		printStr("message", tok.Message)
		printTime("creation", tok.Creation)
	case *token.ID:
		printStr("subject", tok.Subject)
		printStr("auth", tok.Auth)
		printData("auth data", tok.AuthData)
		printStr("initial factors", tok.InitialFactors)
		printStr("session factors", tok.SessionFactors)
		printNum("loa", tok.LOA)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.Login:
		printStr("username", tok.Username)
		if tok.Password != "" {
			printStr("password", "<set>")
		}
		if tok.OTP != "" {
			printStr("otp", "<set>")
		}
		printStr("otp type", tok.OTPType)
		printTime("creation", tok.Creation)
	case *token.Proxy:
		printStr("subject", tok.Subject)
		printStr("proxy type", tok.Type)
		printData("webkdc-proxy", tok.WebKDCProxy)
		printStr("initial factors", tok.InitialFactors)
		printStr("session factors", tok.SessionFactors)
		printNum("loa", tok.LOA)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.Request:
		printStr("command", tok.Command)
		printStr("requested type", tok.Type)
		printStr("auth", tok.Auth)
		printStr("proxy type", tok.ProxyType)
		printData("state", tok.State)
		printStr("return url", tok.ReturnURL)
		printStr("options", tok.Options)
		printStr("initial factors", tok.InitialFactors)
		printStr("session factors", tok.SessionFactors)
		printTime("creation", tok.Creation)
	case *token.WebKDCFactor:
		printStr("subject", tok.Subject)
		printStr("initial factors", tok.InitialFactors)
		printStr("session factors", tok.SessionFactors)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.WebKDCProxy:
		printStr("subject", tok.Subject)
		printStr("proxy type", tok.ProxyType)
		printStr("proxy subject", tok.ProxySubject)
		printData("data", tok.Data)
		printStr("initial factors", tok.InitialFactors)
		printNum("loa", tok.LOA)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	case *token.WebKDCService:
		printStr("subject", tok.Subject)
		printData("session key", tok.SessionKey)
		printTime("creation", tok.Creation)
		printTime("expiration", tok.Expiration)
	}
}

func printStr(name, v string) {
	if v != "" {
		fmt.Printf("%s: %s\n", name, v)
	}
}

func printNum(name string, v uint32) {
	if v != 0 {
		fmt.Printf("%s: %d\n", name, v)
	}
}

func printData(name string, v []byte) {
	if len(v) > 0 {
		fmt.Printf("%s: %s (%d bytes)\n", name, base64.StdEncoding.EncodeToString(v), len(v))
	}
}

func printTime(name string, v time.Time) {
	if !v.IsZero() {
		fmt.Printf("%s: %s\n", name, v.UTC().Format(time.RFC3339))
	}
}
