package session

import (
	"bytes"
	"mime/multipart"
	"strings"

	"github.com/matchday-app/matchday-go/api"
	"github.com/pkg/errors"
)

// AvatarFile is a profile image encoded as a binary multipart file field.
type AvatarFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// RegisterRequest is the registration payload. The avatar is optional;
// everything else is required.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Avatar   *AvatarFile
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &api.ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return &api.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if len(r.Password) < 6 {
		return &api.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return nil
}

func (r RegisterRequest) encode() (string, []byte, error) {
	return encodeMultipart(map[string]string{
		"name":     r.Name,
		"email":    r.Email,
		"password": r.Password,
	}, r.Avatar)
}

// ProfileUpdate enumerates every updatable profile field. Nil fields are
// omitted from the payload; set fields are sent as multipart string fields,
// the avatar as a binary file field.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Bio    *string
	Avatar *AvatarFile
}

func (u ProfileUpdate) encode() (string, []byte, error) {
	fields := make(map[string]string)
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	return encodeMultipart(fields, u.Avatar)
}

// encodeMultipart renders the fields and optional avatar into a byte slice so
// the API client can replay the body on a 401 retry.
func encodeMultipart(fields map[string]string, avatar *AvatarFile) (string, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", nil, errors.Wrap(err, "[encodeMultipart] write field "+name)
		}
	}
	if avatar != nil {
		part, err := writer.CreateFormFile("avatar", avatar.Name)
		if err != nil {
			return "", nil, errors.Wrap(err, "[encodeMultipart] create avatar part")
		}
		if _, err := part.Write(avatar.Data); err != nil {
			return "", nil, errors.Wrap(err, "[encodeMultipart] write avatar")
		}
	}
	if err := writer.Close(); err != nil {
		return "", nil, errors.Wrap(err, "[encodeMultipart] close writer")
	}
	return writer.FormDataContentType(), buf.Bytes(), nil
}
