package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TransitionPress is a down+up tap on a button.
const TransitionPress = "press"

// InputEvent is a single button transition observed by the renderer.
type InputEvent struct {
	_          struct{} `cbor:",toarray"`
	Name       string
	Transition string
}

// NewPress builds a press event for the named button.
func NewPress(name string) InputEvent {
	return InputEvent{Name: name, Transition: TransitionPress}
}

func (e InputEvent) String() string {
	return fmt.Sprintf("%s:%s", e.Name, e.Transition)
}

var ErrEvent = errors.New("codec: malformed input event")

// encMode uses Core Deterministic Encoding so an event always produces the
// same bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeInputEvent frames an input event as a CBOR [name, transition] array.
func EncodeInputEvent(e InputEvent) ([]byte, error) {
	body, err := encMode.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode input event: %w", err)
	}
	return frame(KindInput, 0, body), nil
}

// DecodeInputEvent reverses EncodeInputEvent.
func DecodeInputEvent(data []byte) (InputEvent, error) {
	var e InputEvent
	_, body, err := open(data, KindInput)
	if err != nil {
		return e, err
	}
	if err := decMode.Unmarshal(body, &e); err != nil {
		return InputEvent{}, fmt.Errorf("%w: %v", ErrEvent, err)
	}
	if e.Name == "" || e.Transition == "" {
		return InputEvent{}, fmt.Errorf("%w: empty field", ErrEvent)
	}
	return e, nil
}
