package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lunixbochs/struc"

	"github.com/rcarmo/go-vc5/internal/codec"
	"github.com/rcarmo/go-vc5/internal/codec/vc5"
	"github.com/rcarmo/go-vc5/internal/config"
	"github.com/rcarmo/go-vc5/internal/logging"
)

// Reply status codes.
const (
	StatusOK uint8 = iota
	StatusUnsupported
	StatusCorrupt
	StatusSequencing
	StatusBadRequest
	StatusInternal
)

// ReplyMagic starts every reply.
var ReplyMagic = [4]byte{'V', 'C', '5', 'R'}

// ReplyHeader precedes the samples (or the error text) in each reply.
type ReplyHeader struct {
	Magic  [4]byte `struc:"[4]byte"`
	Width  uint16  `struc:"uint16,big"`
	Height uint16  `struc:"uint16,big"`
	Bits   uint8   `struc:"uint8"`
	Status uint8   `struc:"uint8"`
	Length uint32  `struc:"uint32,big"`
}

// ReplyHeaderSize is the packed size of ReplyHeader.
const ReplyHeaderSize = 14

// ParseReply splits a reply into its header and body.
func ParseReply(msg []byte) (ReplyHeader, []byte, error) {
	var hdr ReplyHeader
	if len(msg) < ReplyHeaderSize {
		return hdr, nil, fmt.Errorf("reply of %d bytes is shorter than its header", len(msg))
	}
	if err := struc.Unpack(bytes.NewReader(msg[:ReplyHeaderSize]), &hdr); err != nil {
		return hdr, nil, fmt.Errorf("unpack reply header: %w", err)
	}
	if hdr.Magic != ReplyMagic {
		return hdr, nil, fmt.Errorf("bad reply magic %q", hdr.Magic[:])
	}
	body := msg[ReplyHeaderSize:]
	if int(hdr.Length) != len(body) {
		return hdr, nil, fmt.Errorf("reply body is %d bytes, header says %d", len(body), hdr.Length)
	}
	return hdr, body, nil
}

// Decoder serves GET /decode: each binary message is one VC-5 payload and
// is answered with one binary reply.
type Decoder struct {
	cfg      *config.Config
	log      *logging.Logger
	codec    codec.Codec
	upgrader websocket.Upgrader
	slots    chan struct{}
}

// NewDecoder creates the decode handler.
func NewDecoder(cfg *config.Config, log *logging.Logger) (*Decoder, error) {
	if cfg == nil {
		return nil, errors.New("handler: nil config")
	}
	if log == nil {
		log = logging.Default()
	}
	c, err := codec.Get(vc5.Name)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:   cfg,
		log:   log,
		codec: c,
		slots: make(chan struct{}, cfg.Security.MaxConnections),
	}
	d.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.Decoder.ReadBufferSize,
		WriteBufferSize: cfg.Decoder.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(origin, cfg.Security.AllowedOrigins)
		},
	}
	return d, nil
}

func (d *Decoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case d.slots <- struct{}{}:
		defer func() { <-d.slots }()
	default:
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn("upgrade websocket: %v", err)
		return
	}

	defer func() {
		if err = wsConn.Close(); err != nil {
			d.log.Debug("error closing websocket: %v", err)
		}
	}()

	wsConn.SetReadLimit(d.cfg.Decoder.MaxPayloadBytes)
	d.serve(wsConn)
}

func (d *Decoder) serve(wsConn *websocket.Conn) {
	for {
		kind, data, err := wsConn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				d.log.Warn("payload exceeds %d bytes", d.cfg.Decoder.MaxPayloadBytes)
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.log.Debug("read message: %v", err)
			}
			return
		}

		var reply []byte
		if kind != websocket.BinaryMessage {
			reply = errorReply(StatusBadRequest, errors.New("payloads must be sent as binary messages"))
		} else {
			reply = d.decode(data)
		}

		if err := wsConn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			d.log.Debug("write reply: %v", err)
			return
		}
	}
}

func (d *Decoder) decode(data []byte) []byte {
	info, err := d.codec.Probe(data)
	if err != nil {
		d.log.Info("probe payload: %v", err)
		return errorReply(statusFor(err), err)
	}

	if pixels := int64(info.Width) * int64(info.Height); pixels > d.cfg.Decoder.MaxPixels {
		err := fmt.Errorf("%w: %dx%d image exceeds the %d pixel limit", vc5.ErrUnsupportedStream, info.Width, info.Height, d.cfg.Decoder.MaxPixels)
		d.log.Info("reject payload: %v", err)
		return errorReply(StatusUnsupported, err)
	}

	img, err := codec.NewRawImage(info.Width, info.Height, info.BitDepth)
	if err != nil {
		return errorReply(StatusInternal, err)
	}

	dec, err := d.codec.NewDecompressor(data, img, codec.Options{
		Workers:  d.cfg.Decoder.Workers,
		Codebook: d.cfg.Decoder.CodebookFile,
		Logger:   d.log,
	})
	if err != nil {
		return errorReply(StatusInternal, err)
	}
	if err := dec.Decode(0, 0); err != nil {
		d.log.Info("decode payload: %v", err)
		return errorReply(statusFor(err), err)
	}

	hdr := ReplyHeader{
		Magic:  ReplyMagic,
		Width:  uint16(info.Width),
		Height: uint16(info.Height),
		Bits:   uint8(info.BitDepth),
		Status: StatusOK,
		Length: uint32(2 * info.Width * info.Height),
	}
	return img.AppendLE(packHeader(hdr))
}

func statusFor(err error) uint8 {
	switch {
	case errors.Is(err, vc5.ErrUnsupportedStream):
		return StatusUnsupported
	case errors.Is(err, vc5.ErrCorruptBitstream):
		return StatusCorrupt
	case errors.Is(err, vc5.ErrSequencingViolation):
		return StatusSequencing
	default:
		return StatusInternal
	}
}

func errorReply(status uint8, err error) []byte {
	text := err.Error()
	hdr := ReplyHeader{
		Magic:  ReplyMagic,
		Status: status,
		Length: uint32(len(text)),
	}
	return append(packHeader(hdr), text...)
}

func packHeader(hdr ReplyHeader) []byte {
	var buf bytes.Buffer
	buf.Grow(ReplyHeaderSize)
	if err := struc.Pack(&buf, &hdr); err != nil {
		// fixed-size struct: Pack only fails on a bad tag
		panic(fmt.Sprintf("pack reply header: %v", err))
	}
	return buf.Bytes()
}

func isAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}

	normalized := strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	normalized = strings.TrimSuffix(normalized, "/")

	if len(allowed) == 0 {
		return true
	}

	if strings.HasPrefix(normalized, "localhost") || strings.HasPrefix(normalized, "127.0.0.1") {
		return true
	}

	for _, entry := range allowed {
		candidate := strings.TrimSpace(entry)
		if candidate == "" {
			continue
		}
		if candidate == origin || candidate == normalized {
			return true
		}
		if strings.TrimPrefix(candidate, "http://") == normalized || strings.TrimPrefix(candidate, "https://") == normalized {
			return true
		}
	}

	return false
}
