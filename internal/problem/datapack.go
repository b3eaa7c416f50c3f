// Package problem carries the test-data package import/export paths.
// The database holds the canonical test cases used for judging; object
// storage holds interchange archives only.
package problem

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"ojcore/internal/common/db"
	"ojcore/internal/common/storage"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

const packContentType = "application/zstd"

// caseMeta is the score/sample sidecar of one package, keyed by ordinal.
type caseMeta struct {
	Score    int  `json:"score"`
	IsSample bool `json:"is_sample"`
}

// PackService moves test cases between the database and archive form.
type PackService struct {
	pool    *sql.DB
	objects storage.ObjectStorage
	bucket  string
}

// NewPackService creates the data-pack service. objects may be nil when
// only in-memory packing is needed.
func NewPackService(pool *sql.DB, objects storage.ObjectStorage, bucket string) *PackService {
	return &PackService{pool: pool, objects: objects, bucket: bucket}
}

func packKey(problemID int64) string {
	return fmt.Sprintf("problems/%d/testdata.tar.zst", problemID)
}

// BuildPack serializes a problem's test cases as ordinal.in/ordinal.out
// pairs plus a meta.json sidecar with scores and sample flags.
func (s *PackService) BuildPack(ctx context.Context, problemID int64) ([]byte, error) {
	cases, err := s.listCases(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, appErr.NotFoundError("test cases")
	}
	meta := make(map[string]caseMeta, len(cases))
	entries := make([]storage.PackEntry, 0, 2*len(cases)+1)
	for _, tc := range cases {
		ord := strconv.Itoa(tc.Ordinal)
		entries = append(entries,
			storage.PackEntry{Name: ord + ".in", Data: []byte(tc.Input)},
			storage.PackEntry{Name: ord + ".out", Data: []byte(tc.Expected)},
		)
		meta[ord] = caseMeta{Score: tc.Score, IsSample: tc.IsSample}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, appErr.InternalError(err)
	}
	entries = append(entries, storage.PackEntry{Name: "meta.json", Data: metaRaw})
	return storage.WritePack(entries)
}

// Export builds the pack and uploads it to object storage.
func (s *PackService) Export(ctx context.Context, problemID int64) (string, error) {
	if s.objects == nil {
		return "", appErr.New(appErr.CodeStorage).WithMessage("Object storage is not configured")
	}
	data, err := s.BuildPack(ctx, problemID)
	if err != nil {
		return "", err
	}
	key := packKey(problemID)
	if err := s.objects.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), packContentType); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage)
	}
	return key, nil
}

// ParsePack decodes an archive into ordered test cases. Entries without
// a matching .out, and names that are not ordinal pairs, are rejected.
func ParsePack(r io.Reader) ([]model.TestCase, error) {
	entries, err := storage.ReadPack(r)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeValidation).WithMessage("Malformed test-data package")
	}
	inputs := make(map[int][]byte)
	outputs := make(map[int][]byte)
	meta := make(map[string]caseMeta)
	for _, entry := range entries {
		switch {
		case entry.Name == "meta.json":
			if err := json.Unmarshal(entry.Data, &meta); err != nil {
				return nil, appErr.ValidationError("meta.json", "invalid JSON")
			}
		case strings.HasSuffix(entry.Name, ".in"):
			ord, err := strconv.Atoi(strings.TrimSuffix(entry.Name, ".in"))
			if err != nil || ord < 1 {
				return nil, appErr.ValidationError(entry.Name, "pack entries must be named <ordinal>.in/.out")
			}
			inputs[ord] = entry.Data
		case strings.HasSuffix(entry.Name, ".out"):
			ord, err := strconv.Atoi(strings.TrimSuffix(entry.Name, ".out"))
			if err != nil || ord < 1 {
				return nil, appErr.ValidationError(entry.Name, "pack entries must be named <ordinal>.in/.out")
			}
			outputs[ord] = entry.Data
		default:
			return nil, appErr.ValidationError(entry.Name, "unexpected pack entry")
		}
	}
	if len(inputs) == 0 {
		return nil, appErr.ValidationError("pack", "no test cases found")
	}

	ordinals := make([]int, 0, len(inputs))
	for ord := range inputs {
		if _, ok := outputs[ord]; !ok {
			return nil, appErr.ValidationError(fmt.Sprintf("%d.out", ord), "missing expected output")
		}
		ordinals = append(ordinals, ord)
	}
	if len(outputs) != len(inputs) {
		return nil, appErr.ValidationError("pack", "orphan .out entry")
	}
	sort.Ints(ordinals)

	cases := make([]model.TestCase, 0, len(ordinals))
	for _, ord := range ordinals {
		m := meta[strconv.Itoa(ord)]
		cases = append(cases, model.TestCase{
			Ordinal:  ord,
			Input:    string(inputs[ord]),
			Expected: string(outputs[ord]),
			Score:    m.Score,
			IsSample: m.IsSample,
		})
	}
	normalizeScores(cases)
	return cases, nil
}

// normalizeScores spreads 100 points over unweighted cases. Packs that
// carry explicit weights are left untouched.
func normalizeScores(cases []model.TestCase) {
	total := 0
	for _, tc := range cases {
		total += tc.Score
	}
	if total > 0 || len(cases) == 0 {
		return
	}
	base := 100 / len(cases)
	for i := range cases {
		cases[i].Score = base
	}
	cases[len(cases)-1].Score += 100 - base*len(cases)
}

// Import replaces a problem's test cases with the archive's contents,
// atomically.
func (s *PackService) Import(ctx context.Context, problemID int64, r io.Reader) (int, error) {
	cases, err := ParsePack(r)
	if err != nil {
		return 0, err
	}
	err = db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE problem_id = ?`, problemID); err != nil {
			return appErr.Wrap(err, appErr.CodeDatabase)
		}
		for _, tc := range cases {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO test_cases (problem_id, ordinal, input, expected, score, is_sample)
				VALUES (?, ?, ?, ?, ?, ?)`,
				problemID, tc.Ordinal, tc.Input, tc.Expected, tc.Score, tc.IsSample); err != nil {
				return appErr.Wrap(err, appErr.CodeDatabase)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cases), nil
}

// ImportFromStorage pulls the problem's archive from object storage and
// imports it.
func (s *PackService) ImportFromStorage(ctx context.Context, problemID int64) (int, error) {
	if s.objects == nil {
		return 0, appErr.New(appErr.CodeStorage).WithMessage("Object storage is not configured")
	}
	obj, err := s.objects.GetObject(ctx, s.bucket, packKey(problemID))
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeStorage)
	}
	defer obj.Close()
	return s.Import(ctx, problemID, obj)
}

func (s *PackService) listCases(ctx context.Context, problemID int64) ([]model.TestCase, error) {
	rows, err := s.pool.QueryContext(ctx,
		`SELECT id, problem_id, ordinal, input, expected, score, is_sample
		FROM test_cases WHERE problem_id = ? ORDER BY ordinal ASC`, problemID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Ordinal, &tc.Input, &tc.Expected,
			&tc.Score, &tc.IsSample); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return cases, nil
}
