package policy

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"sort"
)

// snapshotMagic tags a blob as a policy snapshot before the version even
// gets interpreted, so a stray file never parses as JSON by accident.
var snapshotMagic = [4]byte{'B', 'S', 'V', '1'}

const snapshotVersion uint16 = 1

// armSnapshot pairs an id with its state so the arm table serializes as an
// ordered list rather than a Go map (map iteration order is not stable,
// and the round-trip property requires a canonical byte-equal encoding).
type armSnapshot struct {
	ID    ArmId    `json:"id"`
	State ArmState `json:"state"`
}

type snapshotBody struct {
	Config    Config        `json:"config"`
	Tag       Tag           `json:"tag"`
	Arms      []armSnapshot `json:"arms"`
	NextArmID ArmId         `json:"next_arm_id"`
	RNGState  uint64        `json:"rng_state"`
}

// encodeSnapshot serializes base state plus the owning policy's config into
// the self-describing blob format documented in spec §6: magic header,
// version, policy tag, policy config, arm table, next_arm_id, RNG state,
// trailed by a CRC32 so a torn write is detectable on load.
func encodeSnapshot(tag Tag, cfg Config, b *base) ([]byte, error) {
	ids := make([]ArmId, 0, len(b.arms))
	for id := range b.arms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	body := snapshotBody{
		Config:    cfg,
		Tag:       tag,
		NextArmID: b.nextArmID,
		RNGState:  b.rng.State(),
	}
	body.Config.Tag = tag
	for _, id := range ids {
		body.Arms = append(body.Arms, armSnapshot{ID: id, State: *b.arms[id]})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, snapshotVersion)
	buf.Write(payload)
	sum := crc32.ChecksumIEEE(buf.Bytes())
	_ = binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes(), nil
}

// decodeSnapshot is the inverse of encodeSnapshot. It returns ErrTornSnapshot
// on checksum mismatch and ErrUnknownSnapshotVersion on an unrecognized
// version, per spec §4.C/§6 ("unknown version -> skip with warning").
func decodeSnapshot(blob []byte) (tag Tag, cfg Config, b *base, err error) {
	const headerLen = 4 + 2
	const trailerLen = 4
	if len(blob) < headerLen+trailerLen {
		err = ErrTornSnapshot
		return
	}
	if !bytes.Equal(blob[:4], snapshotMagic[:]) {
		err = ErrUnknownSnapshotVersion
		return
	}
	version := binary.LittleEndian.Uint16(blob[4:6])
	if version != snapshotVersion {
		err = ErrUnknownSnapshotVersion
		return
	}

	payload := blob[headerLen : len(blob)-trailerLen]
	wantSum := binary.LittleEndian.Uint32(blob[len(blob)-trailerLen:])
	gotSum := crc32.ChecksumIEEE(blob[:len(blob)-trailerLen])
	if gotSum != wantSum {
		err = ErrTornSnapshot
		return
	}

	var body snapshotBody
	if jsonErr := json.Unmarshal(payload, &body); jsonErr != nil {
		err = ErrTornSnapshot
		return
	}

	b = &base{
		arms:      make(map[ArmId]*ArmState, len(body.Arms)),
		nextArmID: body.NextArmID,
		rng:       restoreRNG(body.RNGState),
	}
	for _, a := range body.Arms {
		state := a.State
		b.arms[a.ID] = &state
	}
	cfg = body.Config
	cfg.Tag = body.Tag
	tag = body.Tag
	return
}
