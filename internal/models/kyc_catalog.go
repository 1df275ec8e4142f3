package models

// DocumentType identifies an entry of the KYC document catalog
type DocumentType string

const (
	DocumentTypeNationalID                DocumentType = "national_id"
	DocumentTypePassport                  DocumentType = "passport"
	DocumentTypeDriversLicense            DocumentType = "drivers_license"
	DocumentTypeAgentLicense              DocumentType = "agent_license"
	DocumentTypeBrokerLicense             DocumentType = "broker_license"
	DocumentTypeBusinessRegistration      DocumentType = "business_registration"
	DocumentTypeTaxCertificate            DocumentType = "tax_certificate"
	DocumentTypeProofOfAddress            DocumentType = "proof_of_address"
	DocumentTypeProfessionalCertification DocumentType = "professional_certification"
	DocumentTypeAgencyRegistration        DocumentType = "agency_registration"
	DocumentTypeRegulatoryCertificate     DocumentType = "regulatory_certificate"
	DocumentTypeOther                     DocumentType = "other"
)

// DocumentTypeInfo describes a catalog entry for display
type DocumentTypeInfo struct {
	Type        DocumentType `json:"type"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	// AgencyDocument marks types that apply to agencies. Informational only.
	AgencyDocument bool `json:"agency_document"`
}

var documentCatalog = []DocumentTypeInfo{
	{DocumentTypeNationalID, "National ID", "Government-issued national identity card", false},
	{DocumentTypePassport, "Passport", "Valid international passport", false},
	{DocumentTypeDriversLicense, "Driver's License", "Government-issued driver's license", false},
	{DocumentTypeAgentLicense, "Real Estate Agent License", "License to practice as a real estate agent", false},
	{DocumentTypeBrokerLicense, "Broker License", "Real estate broker license", false},
	{DocumentTypeBusinessRegistration, "Business Registration", "Certificate of business registration", true},
	{DocumentTypeTaxCertificate, "Tax Certificate", "Tax identification or clearance certificate", true},
	{DocumentTypeProofOfAddress, "Proof of Address", "Utility bill or bank statement issued within the last 3 months", false},
	{DocumentTypeProfessionalCertification, "Professional Certification", "Membership or certification from a professional body", false},
	{DocumentTypeAgencyRegistration, "Agency Registration", "Registration of the agency with the real estate regulator", true},
	{DocumentTypeRegulatoryCertificate, "Regulatory Certificate", "Certificate of compliance issued by a regulator", true},
	{DocumentTypeOther, "Other", "Any other supporting document", false},
}

// requiredDocuments is the same for every account type.
var requiredDocuments = []DocumentType{
	DocumentTypeNationalID,
	DocumentTypeAgentLicense,
	DocumentTypeProofOfAddress,
}

// DocumentCatalog returns a copy of the document type catalog in display order
func DocumentCatalog() []DocumentTypeInfo {
	out := make([]DocumentTypeInfo, len(documentCatalog))
	copy(out, documentCatalog)
	return out
}

// RequiredDocumentTypes returns a copy of the required document set
func RequiredDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(requiredDocuments))
	copy(out, requiredDocuments)
	return out
}

// LookupDocumentType returns the catalog entry for t
func LookupDocumentType(t DocumentType) (DocumentTypeInfo, bool) {
	for _, info := range documentCatalog {
		if info.Type == t {
			return info, true
		}
	}
	return DocumentTypeInfo{}, false
}

// IsValid reports whether t is part of the catalog
func (t DocumentType) IsValid() bool {
	_, ok := LookupDocumentType(t)
	return ok
}
