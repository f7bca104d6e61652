package netsource

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
)

// Authenticate completes the connection-phase handshake against the
// plugin the server selected (mysql_native_password, mysql_clear_password,
// sha256_password, or caching_sha2_password), following auth-switch and
// the caching_sha2_password fast/full-auth sub-protocol.
func (c *Conn) Authenticate(username, password string) error {
	c.authFlow = nil
	var plugin string
	switch c.hs.authPluginName {
	case "mysql_native_password", "mysql_clear_password", "sha256_password", "caching_sha2_password":
		plugin = c.hs.authPluginName
	case "":
		plugin = "mysql_native_password"
	default:
		return fmt.Errorf("netsource: unsupported auth plugin %q", c.hs.authPluginName)
	}
	c.authFlow = append(c.authFlow, plugin)
	authPluginData := c.hs.authPluginData
	authResponse, err := c.encryptPassword(plugin, []byte(password), authPluginData)
	if err != nil {
		return err
	}

	if err := c.write(handshakeResponse41{
		capabilityFlags: capLongFlag | capSecureConnection,
		maxPacketSize:   maxPacketSize,
		characterSet:    c.hs.characterSet,
		username:        username,
		authResponse:    authResponse,
		authPluginName:  plugin,
	}); err != nil {
		return err
	}

	numAuthSwitches := 0
AuthLoop:
	for {
		r := newReader(&packetReader{rd: c.conn, seq: &c.seq})
		marker, err := r.peek()
		if err != nil {
			return err
		}
		switch marker {
		case okMarker:
			if err := r.drain(); err != nil {
				return err
			}
			break AuthLoop
		case errMarker:
			var ep errPacket
			if err := ep.decode(r, c.hs.capabilityFlags); err != nil {
				return err
			}
			return errors.New(ep.errorMessage)
		case 0x01:
			var amd authMoreData
			if err := amd.decode(r); err != nil {
				return err
			}
			switch plugin {
			case "caching_sha2_password":
				switch len(amd.pluginData) {
				case 0:
					break AuthLoop
				case 1:
					switch amd.pluginData[0] {
					case 3: // fast auth success
						c.authFlow = append(c.authFlow, "fastAuthSuccess")
						if err := c.readOkErr(); err != nil {
							return err
						}
						break AuthLoop
					case 4: // full authentication required
						c.authFlow = append(c.authFlow, "performFullAuthentication")
						switch c.conn.(type) {
						case *tls.Conn, *net.UnixConn:
							authResponse = append([]byte(password), 0)
						default:
							if c.pubKey == nil {
								if err := c.write(requestPublicKey{}); err != nil {
									return err
								}
								r2 := newReader(&packetReader{rd: c.conn, seq: &c.seq})
								var amd2 authMoreData
								if err := amd2.decode(r2); err != nil {
									return err
								}
								if c.pubKey, err = decodePEM(amd2.pluginData); err != nil {
									return err
								}
							}
							if authResponse, err = encryptPasswordPubKey([]byte(password), authPluginData, c.pubKey); err != nil {
								return err
							}
						}
						if err := c.write(authSwitchResponse{authResponse}); err != nil {
							return err
						}
						if err := c.readOkErr(); err != nil {
							return err
						}
						break AuthLoop
					}
				default:
					return errMalformedPacket
				}
			case "sha256_password":
				if len(amd.pluginData) == 0 {
					break AuthLoop
				}
				if c.pubKey, err = decodePEM(amd.pluginData); err != nil {
					return err
				}
				if authResponse, err = encryptPasswordPubKey([]byte(password), authPluginData, c.pubKey); err != nil {
					return err
				}
				if err := c.write(authSwitchResponse{authResponse}); err != nil {
					return err
				}
				if err := c.readOkErr(); err != nil {
					return err
				}
				break AuthLoop
			default:
				break AuthLoop
			}
		case 0xfe:
			if numAuthSwitches != 0 {
				return errors.New("netsource: auth switch requested more than once")
			}
			numAuthSwitches++
			var asr authSwitchRequest
			if err := asr.decode(r); err != nil {
				return err
			}
			plugin = asr.pluginName
			c.authFlow = append(c.authFlow, plugin)
			authPluginData = asr.pluginData
			if authResponse, err = c.encryptPassword(plugin, []byte(password), asr.pluginData); err != nil {
				return err
			}
			if err := c.write(authSwitchResponse{authResponse}); err != nil {
				return err
			}
		default:
			return errMalformedPacket
		}
	}

	// Some managed MySQL offerings (observed on Azure) misreport the
	// server version in the initial handshake; re-query it now that we
	// are authenticated and keep it on the handshake record.
	rows, err := c.queryRows(`select version()`)
	if err != nil {
		return err
	}
	c.hs.serverVersion = rows[0][0].(string)
	return nil
}

func (c *Conn) readOkErr() error {
	r := newReader(&packetReader{rd: c.conn, seq: &c.seq})
	marker, err := r.peek()
	if err != nil {
		return err
	}
	if marker == errMarker {
		var ep errPacket
		if err := ep.decode(r, c.hs.capabilityFlags); err != nil {
			return err
		}
		return errors.New(ep.errorMessage)
	}
	return r.drain()
}

func (c *Conn) encryptPassword(plugin string, password, scramble []byte) ([]byte, error) {
	switch plugin {
	case "sha256_password":
		if len(password) == 0 {
			return []byte{0}, nil
		}
		switch c.conn.(type) {
		case *tls.Conn:
			return append(password, 0), nil
		default:
			if c.pubKey == nil {
				return []byte{1}, nil // ask server for its public key
			}
			return encryptPasswordPubKey(password, scramble, c.pubKey)
		}
	case "caching_sha2_password":
		if len(password) == 0 {
			return nil, nil
		}
		hash := sha256.New()
		sum := func(b []byte) []byte {
			hash.Reset()
			hash.Write(b)
			return hash.Sum(nil)
		}
		x := sum(password)
		y := sum(append(sum(sum(x)), scramble[:20]...))
		for i, b := range y {
			x[i] ^= b
		}
		return x, nil
	case "mysql_native_password":
		if len(password) == 0 {
			return nil, nil
		}
		hash := sha1.New()
		sum := func(b []byte) []byte {
			hash.Reset()
			hash.Write(b)
			return hash.Sum(nil)
		}
		x := sum(password)
		y := sum(append(append([]byte(nil), scramble[:20]...), sum(sum(password))...))
		for i, b := range y {
			x[i] ^= b
		}
		return x, nil
	case "mysql_clear_password":
		return append(password, 0), nil
	}
	return nil, fmt.Errorf("netsource: unsupported auth plugin %q", plugin)
}

func decodePEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("netsource: no PEM data in server response")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return pub.(*rsa.PublicKey), nil
}

func encryptPasswordPubKey(password, seed []byte, pub *rsa.PublicKey) ([]byte, error) {
	seed = seed[:20]
	plain := make([]byte, len(password)+1)
	copy(plain, password)
	for i := range plain {
		plain[i] ^= seed[i%len(seed)]
	}
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil)
}

var errMalformedPacket = errors.New("netsource: malformed packet")

// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthMoreData
type authMoreData struct {
	pluginData []byte
}

func (e *authMoreData) decode(r *reader) error {
	status := r.int1()
	if r.err != nil {
		return r.err
	}
	if status != 0x01 {
		return fmt.Errorf("netsource: authMoreData: got status %#x", status)
	}
	e.pluginData = r.bytesEOF()
	return r.err
}

// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthSwitchRequest
type authSwitchRequest struct {
	pluginName string
	pluginData []byte
}

func (e *authSwitchRequest) decode(r *reader) error {
	status := r.int1()
	if r.err != nil {
		return r.err
	}
	if status != 0xfe {
		return fmt.Errorf("netsource: authSwitchRequest: got status %#x", status)
	}
	e.pluginName = r.stringNull()
	e.pluginData = r.bytesEOF()
	return r.err
}

type authSwitchResponse struct {
	authResponse []byte
}

func (e authSwitchResponse) encode(w *writer) error {
	w.Write(e.authResponse)
	return w.err
}

type requestPublicKey struct{}

func (e requestPublicKey) encode(w *writer) error {
	w.int1(2)
	return w.err
}
