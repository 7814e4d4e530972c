package cloud

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/chunga-ict/vpnctl/kernel/fault"
)

const (
	errCodeInstanceNotFound  = "InvalidInstanceID.NotFound"
	errCodeInstanceMalformed = "InvalidInstanceID.Malformed"
)

// classify maps AWS API failures onto the handler taxonomy.
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case errCodeInstanceNotFound, errCodeInstanceMalformed:
			return fault.Wrap(fault.NotFound, err, format, args...)
		}
	}
	return fault.Wrap(fault.UpstreamError, err, format, args...)
}
