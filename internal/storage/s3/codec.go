package s3

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/objectfs/objclient/internal/multipart"
	"github.com/objectfs/objclient/pkg/errors"
)

const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// ServiceError is an error document returned by the service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
	RequestID  string
	HostID     string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s (status %d, request id %s)", e.Code, e.Message, e.StatusCode, e.RequestID)
}

// ErrorCode implements smithy.APIError.
func (e *ServiceError) ErrorCode() string { return e.Code }

// ErrorMessage implements smithy.APIError.
func (e *ServiceError) ErrorMessage() string { return e.Message }

// ErrorFault implements smithy.APIError.
func (e *ServiceError) ErrorFault() smithy.ErrorFault {
	if e.StatusCode >= 500 || e.Code == "InternalError" {
		return smithy.FaultServer
	}
	return smithy.FaultClient
}

var _ smithy.APIError = (*ServiceError)(nil)

type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

type completedPartXML struct {
	PartNumber int32  `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadXML struct {
	XMLName xml.Name           `xml:"CompleteMultipartUpload"`
	Xmlns   string             `xml:"xmlns,attr,omitempty"`
	Parts   []completedPartXML `xml:"Part"`
}

type completeMultipartUploadResultXML struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// EncodeCompleteRequest renders the CompleteMultipartUpload body.
func EncodeCompleteRequest(parts []types.CompletedPart) ([]byte, error) {
	doc := completeMultipartUploadXML{Xmlns: s3Namespace}
	for _, p := range parts {
		doc.Parts = append(doc.Parts, completedPartXML{
			PartNumber: aws.ToInt32(p.PartNumber),
			ETag:       aws.ToString(p.ETag),
		})
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode complete multipart upload: %w", err)
	}
	return body, nil
}

// xmlCodec decodes completion responses. The body is inspected whatever
// the status code, since an error document may arrive with 200 OK.
type xmlCodec struct{}

// DecodeComplete implements multipart.Decoder.
func (xmlCodec) DecodeComplete(resp *multipart.Response) (*multipart.Result, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, errors.NewError(errors.ErrCodeServiceTerminal, "empty complete multipart upload response").
				WithComponent("s3").
				WithRequestID(resp.RequestID)
		}
		return nil, &ServiceError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode), RequestID: resp.RequestID}
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("decode complete multipart upload response: %w", err)
	}

	switch root {
	case "Error":
		return nil, decodeErrorDocument(resp.StatusCode, body, resp.RequestID)
	case "CompleteMultipartUploadResult":
		var doc completeMultipartUploadResultXML
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode complete multipart upload result: %w", err)
		}
		return &multipart.Result{
			Location:  doc.Location,
			Bucket:    doc.Bucket,
			Key:       doc.Key,
			ETag:      doc.ETag,
			RequestID: resp.RequestID,
		}, nil
	default:
		return nil, fmt.Errorf("unexpected complete multipart upload response element %q", root)
	}
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func decodeErrorDocument(status int, body []byte, requestID string) *ServiceError {
	var doc errorDocument
	if err := xml.Unmarshal(body, &doc); err != nil || doc.Code == "" {
		return &ServiceError{StatusCode: status, Code: http.StatusText(status), Message: string(body), RequestID: requestID}
	}
	if doc.RequestID == "" {
		doc.RequestID = requestID
	}
	return &ServiceError{
		StatusCode: status,
		Code:       doc.Code,
		Message:    doc.Message,
		Resource:   doc.Resource,
		RequestID:  doc.RequestID,
		HostID:     doc.HostID,
	}
}

// responseError turns a non-2xx response into a terminal service error.
func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	requestID := resp.Header.Get(headerRequestID)

	var svcErr *ServiceError
	if len(bytes.TrimSpace(body)) > 0 {
		svcErr = decodeErrorDocument(resp.StatusCode, body, requestID)
	} else {
		svcErr = &ServiceError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode), RequestID: requestID}
	}

	return errors.Newf(errors.ErrCodeServiceTerminal, "%s failed: %s", op, svcErr.Code).
		WithComponent("s3").
		WithOperation(op).
		WithRequestID(svcErr.RequestID).
		WithContext("host_id", svcErr.HostID).
		WithDetail("status", resp.StatusCode).
		WithCause(svcErr)
}
