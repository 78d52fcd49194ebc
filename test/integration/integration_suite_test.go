// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

//go:build integration

// Package integration provides end-to-end integration tests for the
// Chattermon engine against a real PostgreSQL instance.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/store"
)

var (
	pgContainer *tcpostgres.PostgresContainer
	pool        *pgxpool.Pool
	coordStore  *coord.PostgresStore
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	pgContainer, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("chattermon_test"),
		tcpostgres.WithUsername("chattermon"),
		tcpostgres.WithPassword("chattermon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.NewPool(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())

	coordStore = coord.NewPostgresStore(pool)
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
})
