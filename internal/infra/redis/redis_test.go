package redis

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/canteen/internal/config"
)

// fakeServer 只认 RESP 数组命令，一律回复 +OK 并记录收到的命令
type fakeServer struct {
	ln   net.Listener
	mu   sync.Mutex
	cmds []string
}

func newFakeServer(t *testing.T) *fakeServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(c)
	}
}

func (s *fakeServer) handle(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.cmds = append(s.cmds, strings.Join(args, " "))
		s.mu.Unlock()
		if _, err := c.Write([]byte("+OK\r\n")); err != nil {
			return
		}
	}
}

func (s *fakeServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cmds...)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "*")))
	if err != nil {
		return nil, fmt.Errorf("bad header %q", line)
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil {
			return nil, err
		}
		arg, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		args = append(args, strings.TrimSpace(arg))
	}
	return args, nil
}

func TestConnFuncAuthenticatesAndSelectsDB(t *testing.T) {
	srv := newFakeServer(t)
	cfg := &config.RedisConfig{Addr: srv.ln.Addr().String(), Password: "pw", DB: 2, DialTimeout: time.Second}

	conn, err := connFunc(cfg)("tcp", cfg.Addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, []string{"AUTH pw", "SELECT 2"}, srv.commands())
}

func TestConnFuncDefaultsSkipAuthAndSelect(t *testing.T) {
	srv := newFakeServer(t)
	cfg := &config.RedisConfig{Addr: srv.ln.Addr().String()}

	conn, err := connFunc(cfg)("tcp", cfg.Addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.Empty(t, srv.commands())
}
