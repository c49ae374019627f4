package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/crypto"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/validation"
	"github.com/iudanet/synccore/pkg/api"
)

// Export writes records of the replica as a bundle.
// pendingOnly limits the bundle to records not yet exchanged.
// Export does not clear the pending flag: the receiving replica is unknown.
func (s *service) Export(ctx context.Context, w io.Writer, pendingOnly bool) (*api.Bundle, error) {
	var (
		records []*models.Record
		err     error
	)
	if pendingOnly {
		records, err = s.store.ListPending(ctx)
	} else {
		records, err = s.store.ListRecords(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	bundle := &api.Bundle{
		Version:   api.BundleVersion,
		ReplicaID: s.clock.ReplicaID(),
		CreatedAt: s.now().UTC(),
		Records:   make([]api.RecordEnvelope, 0, len(records)),
	}
	for _, rec := range records {
		bundle.Records = append(bundle.Records, toEnvelope(rec))
	}

	bundle.Checksum, err = bundleChecksum(bundle.Records)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return nil, fmt.Errorf("failed to write bundle: %w", err)
	}

	s.logger.Info("Bundle exported", "records", len(bundle.Records), "pending_only", pendingOnly)
	return bundle, nil
}

// Import reconciles every record of a bundle.
// Envelopes that cannot be decoded are skipped, a checksum mismatch rejects
// the whole bundle.
func (s *service) Import(ctx context.Context, r io.Reader) (*Result, error) {
	var bundle api.Bundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}

	if bundle.Version != api.BundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBundle, bundle.Version)
	}

	if bundle.Checksum != "" {
		data, err := json.Marshal(bundle.Records)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bundle records: %w", err)
		}
		if err := crypto.VerifyChecksum(data, bundle.Checksum); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
		}
	}

	s.logger.Info("Importing bundle",
		"replica_id", bundle.ReplicaID,
		"created_at", bundle.CreatedAt,
		"records", len(bundle.Records))

	records := make([]*models.Record, 0, len(bundle.Records))
	skipped := 0
	for _, env := range bundle.Records {
		rec, err := fromEnvelope(env)
		if err != nil {
			s.logger.Warn("Skipping invalid bundle record", "sync_id", env.SyncID, "error", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}

	result, err := s.ReconcileAll(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile bundle: %w", err)
	}
	result.Received += skipped
	result.Skipped += skipped
	s.refreshQueue(ctx)

	return result, nil
}

func bundleChecksum(records []api.RecordEnvelope) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle records: %w", err)
	}
	sum, err := crypto.Checksum(data)
	if err != nil {
		return "", fmt.Errorf("failed to compute bundle checksum: %w", err)
	}
	return sum, nil
}

// toEnvelope конвертирует запись в формат выгрузки
func toEnvelope(rec *models.Record) api.RecordEnvelope {
	env := api.RecordEnvelope{
		SyncID: rec.ID,
		Type:   rec.Type,
		Clock:  make(map[string]uint64, len(rec.Version)),
		Fields: make(map[string]api.FieldEnvelope, rec.Fields.Len()),
	}
	for replica, counter := range rec.Version {
		env.Clock[replica] = counter
	}
	for _, name := range rec.Fields.Fields() {
		reg, _ := rec.Fields.Register(name)
		env.Fields[name] = toFieldEnvelope(reg)
	}
	return env
}

func toFieldEnvelope(reg crdt.LWWRegister[crdt.FieldValue]) api.FieldEnvelope {
	env := api.FieldEnvelope{
		Kind:      reg.Value.Kind().String(),
		Timestamp: reg.Timestamp.UTC().Format(time.RFC3339Nano),
		ReplicaID: reg.ReplicaID,
	}

	switch reg.Value.Kind() {
	case crdt.KindNumber:
		v, _ := reg.Value.AsNumber()
		env.Number = &v
	case crdt.KindText:
		v, _ := reg.Value.AsText()
		env.Text = &v
	case crdt.KindBool:
		v, _ := reg.Value.AsBool()
		env.Bool = &v
	case crdt.KindTimestamp:
		v, _ := reg.Value.AsTimestamp()
		formatted := v.UTC().Format(time.RFC3339Nano)
		env.Time = &formatted
	case crdt.KindBytes:
		v, _ := reg.Value.AsBytes()
		if v == nil {
			v = []byte{}
		}
		env.Bytes = v
	}
	return env
}

// fromEnvelope восстанавливает запись из формата выгрузки.
// Запись из выгрузки не считается локальным изменением (Pending = false).
func fromEnvelope(env api.RecordEnvelope) (*models.Record, error) {
	if err := validation.ValidateSyncID(env.SyncID); err != nil {
		return nil, err
	}
	if err := validation.ValidateKind(env.Type); err != nil {
		return nil, err
	}
	if env.Clock == nil {
		return nil, fmt.Errorf("%w: record %s has no clock", storage.ErrInvalidRecord, env.SyncID)
	}

	clock := crdt.NewVectorClock()
	for replica, counter := range env.Clock {
		if err := validation.ValidateReplicaID(replica); err != nil {
			return nil, fmt.Errorf("clock of %s: %w", env.SyncID, err)
		}
		clock[replica] = counter
	}

	names := make([]string, 0, len(env.Fields))
	for name := range env.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := crdt.NewLWWMap()
	for _, name := range names {
		if err := validation.ValidateFieldName(name); err != nil {
			return nil, fmt.Errorf("field of %s: %w", env.SyncID, err)
		}
		value, ts, err := fromFieldEnvelope(env.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", name, env.SyncID, err)
		}
		fields, _ = fields.Set(name, value, ts, env.Fields[name].ReplicaID)
	}

	return &models.Record{
		ID:      env.SyncID,
		Type:    env.Type,
		Fields:  fields,
		Version: clock,
	}, nil
}

func fromFieldEnvelope(env api.FieldEnvelope) (crdt.FieldValue, time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return crdt.Null(), time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	if env.ReplicaID == "" {
		return crdt.Null(), time.Time{}, fmt.Errorf("write has no replica id")
	}

	kind, err := crdt.ParseFieldKind(env.Kind)
	if err != nil {
		return crdt.Null(), time.Time{}, err
	}

	missing := fmt.Errorf("value of kind %s is missing", kind)
	switch kind {
	case crdt.KindNumber:
		if env.Number == nil {
			return crdt.Null(), time.Time{}, missing
		}
		return crdt.Number(*env.Number), ts, nil
	case crdt.KindText:
		if env.Text == nil {
			return crdt.Null(), time.Time{}, missing
		}
		return crdt.Text(*env.Text), ts, nil
	case crdt.KindBool:
		if env.Bool == nil {
			return crdt.Null(), time.Time{}, missing
		}
		return crdt.Bool(*env.Bool), ts, nil
	case crdt.KindTimestamp:
		if env.Time == nil {
			return crdt.Null(), time.Time{}, missing
		}
		v, err := time.Parse(time.RFC3339Nano, *env.Time)
		if err != nil {
			return crdt.Null(), time.Time{}, fmt.Errorf("invalid time value: %w", err)
		}
		return crdt.Timestamp(v), ts, nil
	case crdt.KindBytes:
		return crdt.Bytes(env.Bytes), ts, nil
	default:
		return crdt.Null(), ts, nil
	}
}
