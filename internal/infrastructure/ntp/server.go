// Package ntp provides a minimal SNTP time service for sprinkler
// devices.
//
// The ESP boards have no battery-backed clock; they query this service
// on boot to set their local time before arming cron schedules. Only
// unicast client requests are answered, with the controller's own
// clock as the reference.
package ntp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/config"
)

// packetSize is the fixed SNTP message length (RFC 4330).
const packetSize = 48

// ntpEpochOffset converts between the Unix epoch (1970) and the NTP
// epoch (1900), in seconds.
const ntpEpochOffset = 2208988800

// modeClient and modeServer are the SNTP association modes handled.
const (
	modeClient = 3
	modeServer = 4
)

// Logger defines the logging interface used by the ntp package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Server answers SNTP client requests over UDP.
type Server struct {
	conn *net.UDPConn
	wg   sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// Listen binds the UDP socket and starts answering requests.
func Listen(cfg config.NTPConfig) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("resolving NTP listen address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding NTP socket: %w", err)
	}

	s := &Server{
		conn:   conn,
		logger: noopLogger{},
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// SetLogger sets a logger for request and error logging.
func (s *Server) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Addr returns the bound UDP address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the service and releases the socket.
func (s *Server) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// serve is the receive loop. It exits when the socket is closed.
func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, packetSize)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.getLogger().Warn("NTP read error", "error", err)
			continue
		}
		if n < packetSize {
			s.getLogger().Debug("short NTP packet dropped", "remote", remote.String(), "bytes", n)
			continue
		}
		if mode := buf[0] & 0x07; mode != modeClient {
			s.getLogger().Debug("non-client NTP packet dropped", "remote", remote.String(), "mode", mode)
			continue
		}

		resp := buildResponse(buf[:packetSize], time.Now())
		if _, err := s.conn.WriteToUDP(resp, remote); err != nil {
			s.getLogger().Warn("NTP write error", "remote", remote.String(), "error", err)
			continue
		}
		s.getLogger().Debug("NTP request answered", "remote", remote.String())
	}
}

// buildResponse fills a server reply for one client request. The
// client's transmit timestamp becomes the originate timestamp; receive
// and transmit both carry the controller clock.
func buildResponse(req []byte, now time.Time) []byte {
	resp := make([]byte, packetSize)

	version := (req[0] >> 3) & 0x07
	resp[0] = version<<3 | modeServer
	resp[1] = 2      // stratum: secondary reference
	resp[2] = req[2] // poll interval echoed
	resp[3] = 0xEC   // precision, about 1 microsecond

	ts := toNTPTime(now)
	binary.BigEndian.PutUint64(resp[16:24], ts) // reference
	copy(resp[24:32], req[40:48])               // originate = client transmit
	binary.BigEndian.PutUint64(resp[32:40], ts) // receive
	binary.BigEndian.PutUint64(resp[40:48], ts) // transmit

	return resp
}

// toNTPTime converts a wall clock time to the 64-bit NTP timestamp
// format: seconds since 1900 in the high word, binary fraction in the
// low word.
func toNTPTime(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) * (1 << 32) / 1_000_000_000
	return secs<<32 | frac
}

// getLogger returns the current logger.
func (s *Server) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
