package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sitegen/internal/site/format"
)

func numbered(i int) Record {
	return Record{
		Timestamp: fmt.Sprintf("2025-01-01 00:00:%02d", i%60),
		CNPJ:      fmt.Sprintf("%014d", i),
		LegalName: fmt.Sprintf("EMPRESA %d LTDA", i),
	}
}

type FileStoreSuite struct {
	suite.Suite
	path  string
	store *FileStore
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "historico.json")
	s.store = NewFileStore(s.path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *FileStoreSuite) TestEmptyWhenFileIsMissing() {
	records, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Empty(records)
	s.NotNil(records)
}

func (s *FileStoreSuite) TestNewestFirst() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, numbered(1)))
	s.Require().NoError(s.store.Append(ctx, numbered(2)))

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(numbered(2), records[0])
	s.Equal(numbered(1), records[1])
}

func (s *FileStoreSuite) TestCapsAtHundredRecords() {
	ctx := context.Background()
	for i := 1; i <= 101; i++ {
		s.Require().NoError(s.store.Append(ctx, numbered(i)))
	}

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, MaxRecords)
	s.Equal(numbered(101), records[0], "newest record first")
	s.Equal(numbered(2), records[MaxRecords-1], "oldest kept is the second appended")
}

func (s *FileStoreSuite) TestCorruptFileIsTreatedAsEmpty() {
	ctx := context.Background()
	s.Require().NoError(os.WriteFile(s.path, []byte("{not json"), 0o644))

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(records)

	s.Require().NoError(s.store.Append(ctx, numbered(1)))
	records, err = s.store.List(ctx)
	s.Require().NoError(err)
	s.Equal([]Record{numbered(1)}, records)
}

func (s *FileStoreSuite) TestFileIsPrettyAndUnicodePreserving() {
	ctx := context.Background()
	record := Record{
		Timestamp: "2025-03-09 14:05:07",
		CNPJ:      "11222333000181",
		LegalName: "PADARIA SÃO JOÃO & FILHOS LTDA",
		City:      "SÃO PAULO",
	}
	s.Require().NoError(s.store.Append(ctx, record))

	data, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	content := string(data)
	s.Contains(content, "PADARIA SÃO JOÃO & FILHOS LTDA")
	s.Contains(content, "\n        \"data\": \"2025-03-09 14:05:07\"")
	s.Contains(content, `"razao_social"`)
	s.Contains(content, `"nome_fantasia"`)
	s.Contains(content, `"telefone"`)
}

func (s *FileStoreSuite) TestLimitOption() {
	ctx := context.Background()
	store := NewFileStore(s.path, WithLimit(3))
	for i := 1; i <= 5; i++ {
		s.Require().NoError(store.Append(ctx, numbered(i)))
	}
	records, err := store.List(ctx)
	s.Require().NoError(err)
	s.Equal([]Record{numbered(5), numbered(4), numbered(3)}, records)
}

func (s *FileStoreSuite) TestConcurrentAppendsAreNotLost() {
	ctx := context.Background()
	const writers = 30

	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(s.store.Append(ctx, numbered(i)))
		}(i)
	}
	wg.Wait()

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(records, writers)

	entries, err := os.ReadDir(filepath.Dir(s.path))
	s.Require().NoError(err)
	s.Len(entries, 1, "temp files must not be left behind")
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	f := format.Fields{
		CNPJ:       "11.222.333/0001-81",
		CNPJDigits: "11222333000181",
		LegalName:  "ACME COMERCIO LTDA",
		TradeName:  "Comercio Ltda",
		Email:      "contato@example.com",
		Site:       "https://seudominio.com",
		Phone:      "(11) 98765-4321",
		City:       "SAO PAULO",
		State:      "SP",
	}

	got := NewRecord(now, f)

	want := Record{
		Timestamp: "2025-03-09 14:05:07",
		CNPJ:      "11222333000181",
		LegalName: "ACME COMERCIO LTDA",
		TradeName: "Comercio Ltda",
		Email:     "contato@example.com",
		Site:      "https://seudominio.com",
		Phone:     "(11) 98765-4321",
		City:      "SAO PAULO",
		State:     "SP",
	}
	if got != want {
		t.Fatalf("NewRecord() = %+v, want %+v", got, want)
	}
}
