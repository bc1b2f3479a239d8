// Command controlclient presses the narrator's buttons over the control API.
//
//	controlclient [-server URL] <action> [arg]
//
// Actions: state, start, deactivate, feature <name>, stop, mode <continuous|manual>,
// language <code>, rate <x>, online <true|false>, remember <name>, listen,
// close-dialog, people.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

type request struct {
	method string
	path   string
	body   any
}

func buildRequest(action string, args []string) (request, error) {
	arg := func() (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("%s needs an argument", action)
		}
		return args[0], nil
	}

	switch action {
	case "state":
		return request{http.MethodGet, "/v1/state", nil}, nil
	case "start":
		return request{http.MethodPost, "/v1/start", nil}, nil
	case "deactivate":
		return request{http.MethodPost, "/v1/deactivate", nil}, nil
	case "stop":
		return request{http.MethodPost, "/v1/stop", nil}, nil
	case "listen":
		return request{http.MethodPost, "/v1/people/listen", nil}, nil
	case "close-dialog":
		return request{http.MethodDelete, "/v1/people/dialog", nil}, nil
	case "people":
		return request{http.MethodGet, "/v1/people", nil}, nil
	case "feature":
		name, err := arg()
		if err != nil {
			return request{}, err
		}
		return request{http.MethodPost, "/v1/features/" + name, nil}, nil
	case "mode":
		mode, err := arg()
		if err != nil {
			return request{}, err
		}
		if mode != "continuous" && mode != "manual" {
			return request{}, fmt.Errorf("mode must be continuous or manual, got %q", mode)
		}
		return request{http.MethodPut, "/v1/mode", map[string]bool{"continuous": mode == "continuous"}}, nil
	case "language":
		code, err := arg()
		if err != nil {
			return request{}, err
		}
		return request{http.MethodPut, "/v1/language", map[string]string{"language": code}}, nil
	case "rate":
		s, err := arg()
		if err != nil {
			return request{}, err
		}
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return request{}, fmt.Errorf("rate: %w", err)
		}
		return request{http.MethodPut, "/v1/rate", map[string]float64{"rate": rate}}, nil
	case "online":
		s, err := arg()
		if err != nil {
			return request{}, err
		}
		online, err := strconv.ParseBool(s)
		if err != nil {
			return request{}, fmt.Errorf("online: %w", err)
		}
		return request{http.MethodPost, "/v1/connectivity", map[string]bool{"online": online}}, nil
	case "remember":
		name, err := arg()
		if err != nil {
			return request{}, err
		}
		return request{http.MethodPost, "/v1/people", map[string]string{"name": name}}, nil
	default:
		return request{}, fmt.Errorf("unknown action %q", action)
	}
}

func main() {
	server := flag.String("server", "http://localhost:8080", "control API base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	req, err := buildRequest(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			log.Fatalf("encode body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, *server+req.path, body)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	log.Printf("%s %s", req.method, req.path)
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	log.Printf("status: %s", resp.Status)
	if len(out) > 0 {
		fmt.Println(string(bytes.TrimSpace(out)))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
