// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/checkmate-auth/checkmate/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
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
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			_ = migrator.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("starts at version zero with everything pending", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Current).To(BeZero())
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Pending).NotTo(BeEmpty())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "second Up is a no-op")

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Pending).To(BeEmpty())
		Expect(status.Current).To(BeNumerically(">=", 1))
	})

	It("enforces the schema constraints", func() {
		pool, err := store.Connect(ctx, store.ConnectOptions{URL: connStr, Attempts: 3, Backoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		insertUser := func(p *pgxpool.Pool, name string) error {
			_, err := p.Exec(ctx, `INSERT INTO users (id, username, password_hash) VALUES (gen_random_uuid(), $1, 'h')`, name)
			return err
		}
		Expect(insertUser(pool, "constraint_user")).To(Succeed())
		Expect(insertUser(pool, "constraint_user")).NotTo(Succeed())
		Expect(insertUser(pool, "Constraint_User")).To(Succeed())

		_, err = pool.Exec(ctx, `INSERT INTO sessions (token, user_id, valid_until)
			SELECT '\x00'::bytea, id, now() FROM users WHERE username = 'constraint_user'`)
		Expect(err).To(HaveOccurred(), "tokens must be 32 bytes")
	})

	It("rolls back and forward", func() {
		latest, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Steps(-1)).To(Succeed())
		v, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(latest - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		v, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(latest))
	})

	It("drops everything on Down and can force a version", func() {
		Expect(migrator.Down()).To(Succeed())
		v, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeZero())
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Force(1)).To(Succeed())
		v, dirty, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})
})
