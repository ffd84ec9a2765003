// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/checkmate-auth/checkmate/internal/api"
	"github.com/checkmate-auth/checkmate/internal/auth"
	authpg "github.com/checkmate-auth/checkmate/internal/auth/postgres"
	authredis "github.com/checkmate-auth/checkmate/internal/auth/redis"
	"github.com/checkmate-auth/checkmate/internal/store"
)

// testEnv holds a running API backed by a PostgreSQL container.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	connStr   string
	closers   []func()
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("checkmate_test"),
		postgres.WithUsername("checkmate"),
		postgres.WithPassword("checkmate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	env.connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(env.connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	return env, nil
}

// startAPI wires the full stack on top of the container and returns the
// base URL of an HTTP test server.
func (env *testEnv) startAPI(useRedis bool) (string, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := store.Connect(env.ctx, store.ConnectOptions{URL: env.connStr, Logger: logger})
	if err != nil {
		return "", err
	}
	env.closers = append(env.closers, pool.Close)

	var sessions auth.SessionRepository = authpg.NewSessionRepository(pool)
	if useRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return "", err
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		env.closers = append(env.closers, func() { _ = client.Close() }, mr.Close)
		sessions = authredis.NewSessionStore(client, "checkmate:session:")
	}

	hasher, err := auth.NewArgon2idHasherWithParams(auth.HasherParams{Memory: 1024, Time: 1, Threads: 1})
	if err != nil {
		return "", err
	}
	svc, err := auth.NewService(authpg.NewUserRepository(pool), sessions, hasher, auth.WithLogger(logger))
	if err != nil {
		return "", err
	}
	env.closers = append(env.closers, svc.Wait)

	authn, err := auth.NewAuthenticator(svc, 0)
	if err != nil {
		return "", err
	}
	server, err := api.New(api.Deps{Service: svc, Authenticator: authn, Logger: logger})
	if err != nil {
		return "", err
	}

	ts := httptest.NewServer(server.Handler())
	env.closers = append(env.closers, ts.Close)
	return ts.URL, nil
}

func (env *testEnv) cleanup() {
	for i := len(env.closers) - 1; i >= 0; i-- {
		env.closers[i]()
	}
	if env.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = env.container.Terminate(ctx)
	}
	env.cancel()
}

type response struct {
	status int
	body   map[string]any
}

func call(method, url, token string, payload any) response {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	Expect(err).NotTo(HaveOccurred())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	out := response{status: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(data) > 0 {
		Expect(json.Unmarshal(data, &out.body)).To(Succeed())
	}
	return out
}

func credentials(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

var _ = Describe("Authentication API", func() {
	var env *testEnv

	BeforeEach(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		env.cleanup()
	})

	for _, backend := range []string{"postgres", "redis"} {
		useRedis := backend == "redis"

		Context("with "+backend+" sessions", func() {
			var baseURL string

			BeforeEach(func() {
				var err error
				baseURL, err = env.startAPI(useRedis)
				Expect(err).NotTo(HaveOccurred())
			})

			It("registers, logs in, reads the profile and logs out", func() {
				resp := call(http.MethodPost, baseURL+"/user", "", credentials("jozin", "zbazin"))
				Expect(resp.status).To(Equal(http.StatusOK))
				Expect(resp.body).To(HaveKeyWithValue("username", "jozin"))

				resp = call(http.MethodPost, baseURL+"/user", "", credentials("jozin", "other"))
				Expect(resp.status).To(Equal(http.StatusConflict))
				Expect(resp.body).To(HaveKeyWithValue("error", "user 'jozin' already exists"))

				resp = call(http.MethodPost, baseURL+"/user/login", "", credentials("jozin", "wrong"))
				Expect(resp.status).To(Equal(http.StatusUnauthorized))

				resp = call(http.MethodPost, baseURL+"/user/login", "", credentials("jozin", "zbazin"))
				Expect(resp.status).To(Equal(http.StatusOK))
				token, ok := resp.body["token"].(string)
				Expect(ok).To(BeTrue())
				Expect(token).To(MatchRegexp("^[0-9a-f]{64}$"))

				resp = call(http.MethodGet, baseURL+"/user", token, nil)
				Expect(resp.status).To(Equal(http.StatusOK))
				Expect(resp.body).To(HaveKeyWithValue("user", HaveKeyWithValue("username", "jozin")))

				resp = call(http.MethodPost, baseURL+"/user/logout", token, nil)
				Expect(resp.status).To(Equal(http.StatusNoContent))

				resp = call(http.MethodGet, baseURL+"/user", token, nil)
				Expect(resp.status).To(Equal(http.StatusUnauthorized))
			})

			It("treats usernames case-sensitively", func() {
				Expect(call(http.MethodPost, baseURL+"/user", "", credentials("Jozin", "a")).status).
					To(Equal(http.StatusOK))
				Expect(call(http.MethodPost, baseURL+"/user", "", credentials("jozin", "b")).status).
					To(Equal(http.StatusOK))

				resp := call(http.MethodPost, baseURL+"/user/login", "", credentials("JOZIN", "a"))
				Expect(resp.status).To(Equal(http.StatusUnauthorized))
			})

			It("keeps concurrent sessions independent", func() {
				Expect(call(http.MethodPost, baseURL+"/user", "", credentials("jozin", "zbazin")).status).
					To(Equal(http.StatusOK))

				first := call(http.MethodPost, baseURL+"/user/login", "", credentials("jozin", "zbazin"))
				second := call(http.MethodPost, baseURL+"/user/login", "", credentials("jozin", "zbazin"))
				Expect(first.body["token"]).NotTo(Equal(second.body["token"]))

				firstToken, _ := first.body["token"].(string)
				secondToken, _ := second.body["token"].(string)
				Expect(call(http.MethodPost, baseURL+"/user/logout", firstToken, nil).status).
					To(Equal(http.StatusNoContent))

				Expect(call(http.MethodGet, baseURL+"/user", firstToken, nil).status).
					To(Equal(http.StatusUnauthorized))
				Expect(call(http.MethodGet, baseURL+"/user", secondToken, nil).status).
					To(Equal(http.StatusOK))
			})
		})
	}
})
