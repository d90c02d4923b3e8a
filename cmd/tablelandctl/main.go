// Command tablelandctl is a local development front door onto the query
// actor: a REPL reading SQL from stdin (grounded in tinySQL's own
// cmd/repl), and an optional gRPC listener exposing Execute/Query over a
// hand-registered grpc.ServiceDesc with a JSON codec (grounded in
// tinySQL's cmd/server, which registers its own TinySQLServer the same
// way rather than going through protoc).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/filecoin-project/go-address"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/tablelandnetwork/go-query-actor/actor"
)

var (
	flagGRPC     = flag.String("grpc", "", "gRPC listen address (empty disables the listener)")
	flagOwner    = flag.Uint64("owner", 1, "ID address (f0<n>) to construct the actor with")
	flagBuckSize = flag.Uint64("bucksize", 32, "PageTree bucket fan-out to construct the actor with")
	flagDBFile   = flag.String("db", "", "path to a raw byte image to construct the initial database from (empty starts blank)")
)

func main() {
	flag.Parse()

	host := newLocalHost()
	owner, err := address.NewIDAddress(*flagOwner)
	if err != nil {
		log.Fatalf("owner address: %v", err)
	}

	var dbImage []byte
	if *flagDBFile != "" {
		dbImage, err = os.ReadFile(*flagDBFile)
		if err != nil {
			log.Fatalf("read -db image: %v", err)
		}
	}

	var a actor.Actor
	if err := runInvocation(func() {
		iv := host.newInvocation(context.Background(), owner)
		a.Constructor(iv, &actor.ConstructorParams{Owner: owner.Bytes(), DB: dbImage, BuckSize: *flagBuckSize})
	}); err != nil {
		log.Fatalf("constructor: %v", err)
	}

	if *flagGRPC != "" {
		go serveGRPC(*flagGRPC, host, a, owner)
	}

	runREPL(host, a, owner)
}

func runREPL(host *localHost, a actor.Actor, caller address.Address) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)

	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}
	if interactive {
		fmt.Println("tablelandctl REPL. End statements with ';'. Ctrl-D to quit.")
	}

	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("sql> ")
			} else {
				fmt.Print(" ... ")
			}
		}
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			continue
		}
		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		runOne(host, a, caller, stmt)
	}
}

func runOne(host *localHost, a actor.Actor, caller address.Address, sql string) {
	up := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(up, "SELECT") {
		err := runInvocation(func() {
			iv := host.newInvocation(context.Background(), caller)
			res := a.Query(iv, &actor.QueryParams{SQL: sql})
			printResult(res)
		})
		if err != nil {
			fmt.Println("ERR:", err)
		}
		return
	}
	err := runInvocation(func() {
		iv := host.newInvocation(context.Background(), caller)
		ret := a.Execute(iv, &actor.ExecuteParams{Statements: []actor.StatementParams{{SQL: sql}}})
		fmt.Printf("(ok, %d rows affected)\n", ret.EffectedRows)
	})
	if err != nil {
		fmt.Println("ERR:", err)
	}
}

func printResult(res *actor.QueryReturn) {
	width := make([]int, len(res.Columns))
	rendered := make([][]string, len(res.Rows))
	for i, c := range res.Columns {
		width[i] = len(c)
	}
	for i, row := range res.Rows {
		rendered[i] = make([]string, len(row))
		for j, cell := range row {
			s := formatCell(cell)
			rendered[i][j] = s
			if len(s) > width[j] {
				width[j] = len(s)
			}
		}
	}
	for i, c := range res.Columns {
		fmt.Print(padRight(c, width[i]))
		if i < len(res.Columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
	for i := range res.Columns {
		fmt.Print(strings.Repeat("-", width[i]))
		if i < len(res.Columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
	for _, row := range rendered {
		for i, s := range row {
			fmt.Print(padRight(s, width[i]))
			if i < len(row)-1 {
				fmt.Print("  ")
			}
		}
		fmt.Println()
	}
}

func formatCell(v actor.Value) string {
	switch v.Kind {
	case actor.KindNull:
		return "NULL"
	case actor.KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case actor.KindReal:
		return fmt.Sprintf("%v", v.Real)
	case actor.KindText:
		return v.Text
	case actor.KindBlob:
		return fmt.Sprintf("%x", v.Blob)
	default:
		return ""
	}
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

// gRPC front door

type execRequest struct {
	SQL string `json:"sql"`
}

type execResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Error   string           `json:"error,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type tablelandServer interface {
	Exec(context.Context, *execRequest) (*execResponse, error)
	Query(context.Context, *queryRequest) (*queryResponse, error)
}

func registerTablelandServer(s *grpc.Server, srv tablelandServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "tableland.QueryActor",
		HandlerType: (*tablelandServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Exec", Handler: execHandler},
			{MethodName: "Query", Handler: queryHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "tablelandctl",
	}, srv)
}

func execHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(execRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(tablelandServer).Exec(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tableland.QueryActor/Exec"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(tablelandServer).Exec(ctx, req.(*execRequest)) }
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(queryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(tablelandServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tableland.QueryActor/Query"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(tablelandServer).Query(ctx, req.(*queryRequest)) }
	return interceptor(ctx, in, info, handler)
}

// grpcServer adapts the actor onto tablelandServer for one shared host.
type grpcServer struct {
	host   *localHost
	actor  actor.Actor
	caller address.Address
}

func (s *grpcServer) Exec(ctx context.Context, req *execRequest) (*execResponse, error) {
	var resp execResponse
	err := runInvocation(func() {
		iv := s.host.newInvocation(ctx, s.caller)
		ret := s.actor.Execute(iv, &actor.ExecuteParams{Statements: []actor.StatementParams{{SQL: req.SQL}}})
		resp = execResponse{Success: true, RowsAffected: ret.EffectedRows}
	})
	if err != nil {
		return &execResponse{Success: false, Error: err.Error()}, nil
	}
	return &resp, nil
}

func (s *grpcServer) Query(ctx context.Context, req *queryRequest) (*queryResponse, error) {
	var resp queryResponse
	err := runInvocation(func() {
		iv := s.host.newInvocation(ctx, s.caller)
		res := s.actor.Query(iv, &actor.QueryParams{SQL: req.SQL})
		rows := make([]map[string]any, len(res.Rows))
		for i, row := range res.Rows {
			m := make(map[string]any, len(res.Columns))
			for j, c := range res.Columns {
				m[c] = row[j].ToSQLValue()
			}
			rows[i] = m
		}
		resp = queryResponse{Columns: res.Columns, Rows: rows}
	})
	if err != nil {
		return &queryResponse{Error: err.Error()}, nil
	}
	return &resp, nil
}

func serveGRPC(addr string, host *localHost, a actor.Actor, caller address.Address) {
	encoding.RegisterCodec(jsonCodec{})
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("gRPC listen error: %v", err)
		return
	}
	gs := grpc.NewServer()
	registerTablelandServer(gs, &grpcServer{host: host, actor: a, caller: caller})
	log.Printf("gRPC listening on %s", addr)
	if err := gs.Serve(lis); err != nil {
		log.Printf("gRPC serve error: %v", err)
	}
}
