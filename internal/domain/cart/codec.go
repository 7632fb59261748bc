package cart

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode serializes state into the session blob format:
//
//	{"lines":[{"item":1,"variant":"standard","qty":2}],"promo":{"code":"X","discount":"10.00","applied_at":"..."}}
func Encode(s *State) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		e.FieldStart("item")
		e.Int64(l.ItemID)
		e.FieldStart("variant")
		e.Str(l.Variant)
		e.FieldStart("qty")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	if p := s.Promo; p != nil {
		e.FieldStart("promo")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(p.Code)
		e.FieldStart("discount")
		e.Str(p.Discount.String())
		e.FieldStart("applied_at")
		e.Str(p.AppliedAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ObjEnd()
	return e.Bytes()
}

// Decode parses a blob produced by Encode. Unknown fields are ignored.
func Decode(data []byte) (*State, error) {
	s := &State{}
	if len(data) == 0 {
		return s, nil
	}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				if l.Quantity > 0 {
					s.Lines = append(s.Lines, l)
				}
				return nil
			})
		case "promo":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p, err := decodePromo(d)
			if err != nil {
				return err
			}
			s.Promo = p
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return s, nil
}

func decodeLine(d *jx.Decoder) (Line, error) {
	var l Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item":
			l.ItemID, err = d.Int64()
		case "variant":
			l.Variant, err = d.Str()
		case "qty":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

func decodePromo(d *jx.Decoder) (*PendingPromotion, error) {
	p := &PendingPromotion{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			p.Code = v
			return err
		case "discount":
			v, err := d.Str()
			if err != nil {
				return err
			}
			if p.Discount, err = decimal.NewFromString(v); err != nil {
				return errors.Wrap(err, "discount")
			}
			return nil
		case "applied_at":
			v, err := d.Str()
			if err != nil {
				return err
			}
			if p.AppliedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
				return errors.Wrap(err, "applied_at")
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
