// Authenticode signatures. Changing any resource invalidates the
// signature, so the editor can report who signed the image and drop
// the certificate table when writing it back.

package pe

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/Velocidex/pkcs7"
	"golang.org/x/text/encoding/unicode"
)

var (
	oidEmailAddress = []int{1, 2, 840, 113549, 1, 9, 1}

	oidSigningTime            = []int{1, 2, 840, 113549, 1, 9, 5}
	oidMessageDigest          = []int{1, 2, 840, 113549, 1, 9, 4}
	oidSPC_SP_OPUS_INFO_OBJID = []int{1, 3, 6, 1, 4, 1, 311, 2, 1, 12}

	// Reference https://datatracker.ietf.org/doc/html/rfc2315
	OIDIndirectData = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
)

// certificateTable locates the WIN_CERTIFICATE. The security directory
// holds a file offset, not an RVA.
func (self *PEImage) certificateTable() (*WIN_CERTIFICATE, error) {
	dir := self.nt_header.DataDirectory(IMAGE_DIRECTORY_ENTRY_SECURITY)
	if dir == nil || dir.DirSize() == 0 || dir.VirtualAddress() == 0 {
		return nil, ErrNoSignature
	}

	if int64(dir.VirtualAddress())+int64(dir.DirSize()) > self.size {
		return nil, fmt.Errorf("%w: certificate table past end of file",
			ErrOutOfBounds)
	}
	return self.profile.WIN_CERTIFICATE(self.reader, int64(dir.VirtualAddress())), nil
}

// Signed reports whether the image carries a certificate table that
// will be written out.
func (self *PEImage) Signed() bool {
	_, err := self.certificateTable()
	return err == nil && self.strip_certificate_size == 0
}

// Signature parses the PKCS#7 blob of the first certificate.
func (self *PEImage) Signature() (*pkcs7.PKCS7, error) {
	win_cert, err := self.certificateTable()
	if err != nil {
		return nil, err
	}

	length := int64(CapUint32(win_cert.Length(), MAX_WIN_CERTIFICATE_LENGTH))
	if length <= self.profile.Off_WIN_CERTIFICATE_Certificate {
		return nil, fmt.Errorf("%w: WIN_CERTIFICATE is empty", ErrNoSignature)
	}

	data, err := readFull(self.reader,
		win_cert.Offset+self.profile.Off_WIN_CERTIFICATE_Certificate,
		length-self.profile.Off_WIN_CERTIFICATE_Certificate)
	if err != nil {
		return nil, err
	}

	return pkcs7.Parse(data)
}

// StripSignature drops the certificate table when the image is next
// written. The security directory is cleared in the output.
func (self *PEImage) StripSignature() error {
	dir := self.nt_header.DataDirectory(IMAGE_DIRECTORY_ENTRY_SECURITY)
	if dir == nil || dir.DirSize() == 0 || dir.VirtualAddress() == 0 {
		return ErrNoSignature
	}

	offset := int64(dir.VirtualAddress())
	if offset < self.overlay_offset {
		return fmt.Errorf("%w: certificate table inside section data",
			ErrNotSupported)
	}

	self.strip_certificate_offset = offset
	self.strip_certificate_size = int64(dir.DirSize())
	return nil
}

// SignatureToDict summarizes the signer and certificates.
func SignatureToDict(self *pkcs7.PKCS7) *ordereddict.Dict {
	certificates := make([]*ordereddict.Dict, 0, len(self.Certificates))
	for _, cert := range self.Certificates {
		certificates = append(certificates, x509ToDict(cert))
	}

	result := ordereddict.NewDict().
		Set("Signer", getSigner(self)).
		Set("Certificates", certificates)

	if self.SignedData.ContentInfo.ContentType.Equal(OIDIndirectData) {
		indirect_data, err := parseIndirectData(self)
		if err == nil {
			_, hash, _ := getHashForOID(indirect_data.MessageDigest.DigestAlgorithm.Algorithm)
			result.Set("HashType", hash)
			result.Set("ExpectedHashHex", fmt.Sprintf("%x", indirect_data.MessageDigest.Digest))
		}
	}

	return result
}

// Authenticode has only one signer - the signer info indicates a
// certificate serial number which should refer to one of the
// certificates in the pkcs7 structure.
func getSigner(self *pkcs7.PKCS7) *ordereddict.Dict {
	for _, signer_info := range self.Signers {
		serial_number := signer_info.IssuerAndSerialNumber.SerialNumber
		signer := getSignerInfo(&signer_info)
		for _, cert := range self.Certificates {
			if cert.SerialNumber.Cmp(serial_number) == 0 {
				return signer.Set("Subject", getNamesString(cert.Subject.Names))
			}
		}
		return signer
	}
	return nil
}

func getSignerInfo(signer_info *pkcs7.SignerInfo) *ordereddict.Dict {
	var issuer pkix.RDNSequence
	var names []pkix.AttributeTypeAndValue
	_, err := asn1.Unmarshal(signer_info.IssuerAndSerialNumber.IssuerName.FullBytes, &issuer)
	if err == nil {
		for _, set := range issuer {
			names = append(names, set...)
		}
	}

	_, hash_name, _ := getHashForOID(signer_info.DigestAlgorithm.Algorithm)

	signer := ordereddict.NewDict().
		Set("IssuerName", getNamesString(names)).
		Set("SerialNumber", fmt.Sprintf("%x", signer_info.IssuerAndSerialNumber.SerialNumber)).
		Set("DigestAlgorithm", hash_name)

	for _, attr := range signer_info.AuthenticatedAttributes {
		switch {
		case attr.Type.Equal(oidSPC_SP_OPUS_INFO_OBJID):
			program_info := parseSpcSpOpusInfo(attr.Value.Bytes)
			if program_info != nil {
				signer.Set("ProgramName", program_info.ProgramName).
					Set("MoreInfo", program_info.MoreInfo)
			}

		case attr.Type.Equal(oidSigningTime):
			signer.Set("SigningTime", parseTimestamp(attr.Value.Bytes))

		case attr.Type.Equal(oidMessageDigest):
			signer.Set("MessageDigestHex",
				fmt.Sprintf("%x", parseMessageDigest(attr.Value.Bytes)))
		}
	}

	return signer
}

func x509ToDict(cert *x509.Certificate) *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("SerialNumber", fmt.Sprintf("%x", cert.SerialNumber)).
		Set("SignatureAlgorithm", fmt.Sprintf("%v", cert.SignatureAlgorithm)).
		Set("Subject", getNamesString(cert.Subject.Names)).
		Set("Issuer", getNamesString(cert.Issuer.Names)).
		Set("NotBefore", cert.NotBefore).
		Set("NotAfter", cert.NotAfter)
}

func getNamesString(names []pkix.AttributeTypeAndValue) string {
	var values []string

	for _, name := range names {
		oid := name.Type
		if len(oid) == 4 && oid[0] == 2 && oid[1] == 5 && oid[2] == 4 {
			switch oid[3] {
			case 3:
				values = append(values, fmt.Sprintf("CN=%s", name.Value))
			case 5:
				values = append(values, fmt.Sprintf("SN=%s", name.Value))
			case 6:
				values = append(values, fmt.Sprintf("C=%s", name.Value))
			case 7:
				values = append(values, fmt.Sprintf("L=%s", name.Value))
			case 8:
				values = append(values, fmt.Sprintf("ST=%s", name.Value))
			case 10:
				values = append(values, fmt.Sprintf("O=%s", name.Value))
			case 11:
				values = append(values, fmt.Sprintf("OU=%s", name.Value))
			default:
				values = append(values, fmt.Sprintf("UnknownOID=%s", name.Type.String()))
			}

		} else if oid.Equal(oidEmailAddress) {
			values = append(values, fmt.Sprintf("emailAddress=%s", name.Value))

		} else {
			values = append(values, fmt.Sprintf("UnknownOID=%s", name.Type.String()))
		}
	}
	return strings.Join(values, ", ")
}

type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

type SpcIndirectDataContent struct {
	Data          asn1.RawValue
	MessageDigest DigestInfo
}

func parseIndirectData(pkcs7 *pkcs7.PKCS7) (*SpcIndirectDataContent, error) {
	var indirect_data SpcIndirectDataContent
	_, err := asn1.Unmarshal(pkcs7.SignedData.ContentInfo.Content.Bytes, &indirect_data)
	if err != nil {
		return nil, err
	}

	return &indirect_data, nil
}

type spcSpOpusInfo struct {
	ProgramName asn1.RawValue `asn1:"explicit,optional,tag:0"`
	MoreInfo    asn1.RawValue `asn1:"explicit,optional,tag:1"`
}

type SpcSpOpusInfo struct {
	ProgramName string
	MoreInfo    string
}

func parseSpcSpOpusInfo(bytes []byte) *SpcSpOpusInfo {
	var data spcSpOpusInfo
	_, err := asn1.Unmarshal(bytes, &data)
	if err != nil {
		return nil
	}

	// Since SpcString is a choice we need to decode it by hand.
	return &SpcSpOpusInfo{
		ProgramName: decodeSpcString(data.ProgramName),
		MoreInfo:    decodeSpcString(data.MoreInfo),
	}
}

func decodeSpcString(value asn1.RawValue) string {
	var result asn1.RawValue
	asn1.Unmarshal(value.Bytes, &result)

	// This does not appear very consistent in practice so we just
	// guess if it is unicode or utf8.
	if len(result.Bytes) > 0 && len(result.Bytes)%2 == 0 && result.Bytes[0] == 0 {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		utf8, err := decoder.Bytes(result.Bytes)
		if err == nil {
			return string(utf8)
		}
	}
	return string(result.Bytes)
}

func getHashForOID(oid asn1.ObjectIdentifier) (crypto.Hash, string, error) {
	switch {
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA1),
		oid.Equal(pkcs7.OIDDigestAlgorithmECDSASHA1),
		oid.Equal(pkcs7.OIDDigestAlgorithmDSA),
		oid.Equal(pkcs7.OIDDigestAlgorithmDSASHA1),
		oid.Equal(pkcs7.OIDEncryptionAlgorithmRSA):
		return crypto.SHA1, "SHA1", nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA256),
		oid.Equal(pkcs7.OIDDigestAlgorithmECDSASHA256):
		return crypto.SHA256, "SHA256", nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA384),
		oid.Equal(pkcs7.OIDDigestAlgorithmECDSASHA384):
		return crypto.SHA384, "SHA384", nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA512),
		oid.Equal(pkcs7.OIDDigestAlgorithmECDSASHA512):
		return crypto.SHA512, "SHA512", nil
	}
	return crypto.Hash(0), "Unknown", ErrNotSupported
}

func parseTimestamp(bytes []byte) *time.Time {
	var result time.Time
	_, err := asn1.Unmarshal(bytes, &result)
	if err == nil {
		return &result
	}
	return nil
}

func parseMessageDigest(bytes []byte) []byte {
	var result []byte
	asn1.Unmarshal(bytes, &result)
	return result
}
