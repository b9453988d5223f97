// Package gwtest provides a hand-rolled fake implementing gateway.Gateway
// for unit tests across pkg/attrs, pkg/gateway, pkg/copier, pkg/verify and
// pkg/orchestrate, mirroring the teacher's mockAPIError-style test doubles
// (pkg/provider/s3/provider_test.go) generalized into a reusable fake
// rather than a one-off per test file.
package gwtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// Fake is an in-memory gateway.Gateway. Objects are keyed by "bucket/key".
// It is safe for concurrent use, matching the concurrency contract copier
// tests exercise.
type Fake struct {
	mu      sync.Mutex
	objects map[string]*gateway.Attributes
	tags    map[string][]gateway.Tag
	regions map[string]string

	uploads map[string]*upload

	// Injected failures, keyed by operation name; consumed once per call.
	FailNext map[string]error

	// PerPartError lets tests fail specific part numbers on CopyPart.
	PerPartError map[int32]error

	// SlowDownParts marks part numbers that return ErrSlowDown once, then
	// succeed on retry (spec §4.6 majority-slow-down probe handling).
	SlowDownParts map[int32]bool
	slowDownSeen  map[int32]bool

	// PartDelay, if positive, is slept before every CopyPart returns.
	// Lets tests drive the executor's wall-clock throughput measurement
	// to a known value instead of racing an in-memory fake that would
	// otherwise complete every part near-instantly.
	PartDelay time.Duration

	CreateCalls   atomic.Int64
	CompleteCalls atomic.Int64
	AbortCalls    atomic.Int64
	CopyPartCalls atomic.Int64
	HeadCalls     atomic.Int64

	nextUploadID atomic.Int64
}

type upload struct {
	dst   gateway.ObjectRef
	opts  gateway.Options
	parts map[int32]gateway.PartRecord
	done  bool
}

// New creates an empty fake gateway.
func New() *Fake {
	return &Fake{
		objects:       map[string]*gateway.Attributes{},
		tags:          map[string][]gateway.Tag{},
		regions:       map[string]string{},
		uploads:       map[string]*upload{},
		FailNext:      map[string]error{},
		PerPartError:  map[int32]error{},
		SlowDownParts: map[int32]bool{},
		slowDownSeen:  map[int32]bool{},
	}
}

func key(ref gateway.ObjectRef) string { return ref.Bucket + "/" + ref.Key }

// PutObject seeds an object directly, bypassing any copy path. Useful for
// setting up source/destination fixtures in tests.
func (f *Fake) PutObject(ref gateway.ObjectRef, attrs gateway.Attributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := attrs
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}
	f.objects[key(ref)] = &a
}

// SetRegion records the region a bucket resolves to.
func (f *Fake) SetRegion(bucket, region string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[bucket] = region
}

func (f *Fake) consumeFailure(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailNext[op]; ok {
		delete(f.FailNext, op)
		return err
	}
	return nil
}

func (f *Fake) Head(_ context.Context, ref gateway.ObjectRef) (*gateway.Attributes, error) {
	f.HeadCalls.Add(1)
	if err := f.consumeFailure("Head"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.objects[key(ref)]
	if !ok {
		return nil, &gateway.Error{Op: "Head", Bucket: ref.Bucket, Key: ref.Key, Err: gateway.ErrNotFound}
	}
	cp := *a
	return &cp, nil
}

func (f *Fake) HeadBucketRegion(_ context.Context, bucket string) (string, error) {
	if err := f.consumeFailure("HeadBucketRegion"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.regions[bucket]; ok {
		return r, nil
	}
	return "us-east-1", nil
}

func (f *Fake) GetTags(_ context.Context, ref gateway.ObjectRef) ([]gateway.Tag, error) {
	if err := f.consumeFailure("GetTags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Tag(nil), f.tags[key(ref)]...), nil
}

func (f *Fake) PutTags(_ context.Context, ref gateway.ObjectRef, tags []gateway.Tag) error {
	if err := f.consumeFailure("PutTags"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[key(ref)] = append([]gateway.Tag(nil), tags...)
	return nil
}

func (f *Fake) CopySingle(_ context.Context, src, dst gateway.ObjectRef, opts gateway.Options) (*gateway.Attributes, error) {
	if err := f.consumeFailure("CopySingle"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	srcAttrs, ok := f.objects[key(src)]
	if !ok {
		return nil, &gateway.Error{Op: "CopySingle", Bucket: src.Bucket, Key: src.Key, Err: gateway.ErrNotFound}
	}
	result := applyOptions(*srcAttrs, opts)
	result.ETag = fmt.Sprintf("single-%s-%d", dst.Key, len(f.objects))
	f.objects[key(dst)] = &result
	if opts.Tagging != "" {
		f.tags[key(dst)] = parseTagging(opts.Tagging)
	}
	cp := result
	return &cp, nil
}

func (f *Fake) CreateMultipart(_ context.Context, dst gateway.ObjectRef, opts gateway.Options) (string, error) {
	f.CreateCalls.Add(1)
	if err := f.consumeFailure("CreateMultipart"); err != nil {
		return "", err
	}
	id := fmt.Sprintf("upload-%d", f.nextUploadID.Add(1))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[id] = &upload{dst: dst, opts: opts, parts: map[int32]gateway.PartRecord{}}
	return id, nil
}

func (f *Fake) CopyPart(_ context.Context, uploadID string, partNumber int32, src, dst gateway.ObjectRef, byteRange gateway.ByteRange) (gateway.PartRecord, error) {
	f.CopyPartCalls.Add(1)
	if f.PartDelay > 0 {
		time.Sleep(f.PartDelay)
	}
	if err := f.consumeFailure("CopyPart"); err != nil {
		return gateway.PartRecord{}, err
	}
	if err, ok := f.PerPartError[partNumber]; ok {
		return gateway.PartRecord{}, err
	}
	f.mu.Lock()
	if f.SlowDownParts[partNumber] && !f.slowDownSeen[partNumber] {
		f.slowDownSeen[partNumber] = true
		f.mu.Unlock()
		return gateway.PartRecord{}, gateway.ErrSlowDown
	}
	up, ok := f.uploads[uploadID]
	f.mu.Unlock()
	if !ok {
		return gateway.PartRecord{}, &gateway.Error{Op: "CopyPart", Err: gateway.ErrInvalidPlan}
	}
	if _, ok := f.objects[key(src)]; !ok {
		return gateway.PartRecord{}, &gateway.Error{Op: "CopyPart", Bucket: src.Bucket, Key: src.Key, Err: gateway.ErrNotFound}
	}

	rec := gateway.PartRecord{PartNumber: partNumber, ETag: fmt.Sprintf("part-%d", partNumber), Size: byteRange.Len()}
	f.mu.Lock()
	up.parts[partNumber] = rec
	f.mu.Unlock()
	return rec, nil
}

func (f *Fake) CompleteMultipart(_ context.Context, dst gateway.ObjectRef, uploadID string, parts []gateway.PartRecord) (*gateway.Attributes, error) {
	f.CompleteCalls.Add(1)
	if err := f.consumeFailure("CompleteMultipart"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok || up.done {
		return nil, &gateway.Error{Op: "CompleteMultipart", Err: gateway.ErrInvalidPlan}
	}

	sorted := append([]gateway.PartRecord(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	for i, p := range sorted {
		if p.PartNumber != int32(i+1) && (i == 0 || sorted[i-1].PartNumber+1 != p.PartNumber) {
			// Non-contiguous numbering: still allowed by the interface
			// (gaps are a caller bug) but we don't fail the fake for it,
			// the executor's own tests assert contiguity separately.
			_ = p
		}
	}

	var total int64
	for _, p := range sorted {
		total += p.Size
	}
	up.done = true
	result := gateway.Attributes{Size: total, ETag: fmt.Sprintf("multipart-%s-%d", uploadID, len(sorted)), Metadata: map[string]string{}}
	if up.opts.Metadata != nil {
		for k, v := range up.opts.Metadata {
			result.Metadata[k] = v
		}
	}
	f.objects[key(dst)] = &result
	cp := result
	return &cp, nil
}

func (f *Fake) AbortMultipart(_ context.Context, _ gateway.ObjectRef, uploadID string) error {
	f.AbortCalls.Add(1)
	if err := f.consumeFailure("AbortMultipart"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, uploadID)
	return nil
}

// OpenUploads returns the number of uploads neither completed nor aborted;
// used by no-leak tests (spec §8 property 7).
func (f *Fake) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func applyOptions(src gateway.Attributes, opts gateway.Options) gateway.Attributes {
	out := src
	out.Metadata = map[string]string{}
	for k, v := range src.Metadata {
		out.Metadata[k] = v
	}
	if opts.MetadataDirective == "REPLACE" {
		for k, v := range opts.Metadata {
			out.Metadata[k] = v
		}
		if opts.ContentType != "" {
			out.ContentType = opts.ContentType
		}
		if opts.CacheControl != "" {
			out.CacheControl = opts.CacheControl
		}
		if opts.ContentDisposition != "" {
			out.ContentDisposition = opts.ContentDisposition
		}
		if opts.ContentEncoding != "" {
			out.ContentEncoding = opts.ContentEncoding
		}
		if opts.ContentLanguage != "" {
			out.ContentLanguage = opts.ContentLanguage
		}
	} else {
		for k, v := range opts.Metadata {
			out.Metadata[k] = v
		}
	}
	if opts.StorageClass != "" {
		out.StorageClass = opts.StorageClass
	}
	if opts.ChecksumAlgorithm != "" {
		out.ChecksumAlgorithm = opts.ChecksumAlgorithm
	}
	return out
}

func parseTagging(tagging string) []gateway.Tag {
	var tags []gateway.Tag
	kv := ""
	for _, part := range splitAmp(tagging) {
		kv = part
		if kv == "" {
			continue
		}
		k, v := splitEq(kv)
		tags = append(tags, gateway.Tag{Key: k, Value: v})
	}
	return tags
}

func splitAmp(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '&' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func splitEq(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

var _ gateway.Gateway = (*Fake)(nil)
